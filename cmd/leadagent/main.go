package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

//使用go:embed嵌入appconfig.json文件
//下方注释重要,不能删除
//appconfig.json 中只需要填写与默认值不同的项,运行时还可以用 --config 指定外部文件覆盖

//go:embed appconfig/appconfig.json
var appConfig []byte

func main() {
	// .env 不存在时忽略,API 密钥也可以直接放在环境变量中
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
