package account

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/betbot/dicebot/internal/domain"
)

// DefaultPresets 内置倍投预设
// steady 是默认档；aggressive 用更短的连投上限换更高倍率，
// conservative 把上限拉长、倍率压低。
func DefaultPresets() map[string]domain.Preset {
	return map[string]domain.Preset{
		"steady": {
			Name:          "steady",
			Continuous:    10,
			LoseStop:      13,
			LoseOnce:      3.0,
			LoseTwice:     2.1,
			LoseThree:     2.1,
			LoseFour:      2.05,
			InitialAmount: 500,
		},
		"aggressive": {
			Name:          "aggressive",
			Continuous:    8,
			LoseStop:      10,
			LoseOnce:      3.0,
			LoseTwice:     2.2,
			LoseThree:     2.2,
			LoseFour:      2.1,
			InitialAmount: 1000,
		},
		"conservative": {
			Name:          "conservative",
			Continuous:    12,
			LoseStop:      15,
			LoseOnce:      2.5,
			LoseTwice:     2.0,
			LoseThree:     2.0,
			LoseFour:      2.0,
			InitialAmount: 500,
		},
	}
}

// fileConfig 账号配置文件（accounts/<name>.yaml）
type fileConfig struct {
	Name    string          `yaml:"name"`
	ChatID  string          `yaml:"chatID"`
	Model   string          `yaml:"model"`
	Presets []domain.Preset `yaml:"presets"` // 覆盖/追加到内置预设
}

// Spec 账号加载参数
type Spec struct {
	Name    string
	ChatID  string
	ModelID string
	Presets map[string]domain.Preset
}

// LoadSpecs 扫描账号配置目录（*.yaml），目录不存在时返回空列表
func LoadSpecs(dir string) ([]Spec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "读取账号配置目录失败 %s", dir)
	}

	var specs []Spec
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "读取账号配置失败 %s", path)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(buf, &fc); err != nil {
			return nil, errors.Wrapf(err, "解析账号配置失败 %s", path)
		}
		if fc.Name == "" {
			fc.Name = e.Name()[:len(e.Name())-len(".yaml")]
		}

		presets := DefaultPresets()
		for _, p := range fc.Presets {
			if p.Name != "" {
				presets[p.Name] = p
			}
		}
		specs = append(specs, Spec{
			Name:    fc.Name,
			ChatID:  fc.ChatID,
			ModelID: fc.Model,
			Presets: presets,
		})
	}
	return specs, nil
}
