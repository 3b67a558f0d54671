// secrets-import 把 .env 里的敏感配置导入 badger 密钥库。
// 模型网关与通知模块都优先从密钥库取 Key，导入后 .env 就可以删掉了。
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/betbot/dicebot/pkg/secretstore"
)

func main() {
	var (
		inPath    = flag.String("in", ".env", ".env 文件路径")
		dbPath    = flag.String("badger", getenv("DICEBOT_SECRET_PATH", "data/secrets"), "badger 密钥库路径")
		secretKey = flag.String("secret-key", getenv("DICEBOT_SECRET_KEY", ""), "加密密钥 (32 字节 base64/hex)")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("必须提供加密密钥: 设置 DICEBOT_SECRET_KEY 或传 -secret-key"))
	}

	kv, err := godotenv.Read(*inPath)
	if err != nil {
		fatal(err)
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	written := 0
	for k, v := range kv {
		if strings.TrimSpace(k) == "" || v == "" {
			continue
		}
		// 模型 Key 用网关约定的键名，其余原样保存
		name := k
		if strings.HasSuffix(k, "_KEY") || strings.HasSuffix(k, "_API_KEY") {
			name = "model_key_" + k
		}
		if err := ss.SetString(name, v); err != nil {
			fatal(err)
		}
		written++
	}

	fmt.Fprintf(os.Stderr, "已导入 %d 项到密钥库: %s\n", written, *dbPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
