package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/blog-rag/cmd/blog-rag/commands"
	"github.com/jinford/blog-rag/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger.New(logger.DefaultConfig())

	app := &cli.Command{
		Name:  "blog-rag",
		Usage: "キーワードからリサーチ駆動でブログ記事を生成する非同期パイプライン",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "サーバ関連コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTP APIサーバとジョブワーカーを起動",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.IntFlag{
								Name:  "port",
								Usage: "HTTPポート（省略時は環境変数またはデフォルトの8080）",
							},
							&cli.BoolFlag{
								Name:  "in-memory",
								Usage: "PostgreSQLの代わりにインメモリストアを使用（開発用）",
							},
						},
						Action: commands.ServerStartAction,
					},
				},
			},
			{
				Name:  "worker",
				Usage: "ワーカー関連コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "ジョブワーカーのみを起動",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.WorkerStartAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
