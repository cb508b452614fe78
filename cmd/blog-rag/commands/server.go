package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/blog-rag/internal/interface/httpapi"
	"github.com/jinford/blog-rag/internal/platform/container"
)

// ServerStartAction はHTTP APIサーバとジョブワーカーを同一プロセスで起動する
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	var opts []container.ContainerOption
	if cmd.Bool("in-memory") {
		opts = append(opts, container.WithInMemoryStore())
	}

	app, err := NewAppContext(ctx, cmd.String("env"), opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	port := app.Config.Server.Port
	if cmd.Int("port") > 0 {
		port = int(cmd.Int("port"))
	}

	app.Container.Worker.Start(ctx)
	defer app.Container.Worker.Stop()

	server := httpapi.NewServer(app.Container.JobService, port, app.Logger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバの停止に失敗: %w", err)
	}
	return nil
}
