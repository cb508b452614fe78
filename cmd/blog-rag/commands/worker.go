package commands

import (
	"context"

	"github.com/urfave/cli/v3"
)

// WorkerStartAction はジョブワーカーのみを起動する
// APIサーバとワーカーを別プロセスでスケールさせる構成で使用する
func WorkerStartAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	app.Logger().Info("worker process starting")

	app.Container.Worker.Start(ctx)

	<-ctx.Done()

	app.Container.Worker.Stop()
	return nil
}
