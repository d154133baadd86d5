package cmd

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/blobmux/blobmux/pkg/blobmux"
	"github.com/blobmux/blobmux/pkg/chantransport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the provider until interrupted",
	Long: `Subscribes to every operation kind on the configured transport,
starts the link admin endpoint, and dispatches invocations until SIGINT
or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var transport blobmux.Transport
		switch name := manager.Cfg.GetString("transport"); name {
		case "local":
			transport = chantransport.New()
		default:
			return errors.Errorf("unknown transport %q", name)
		}

		dispatcher := manager.NewDispatcher(transport)

		admin := &http.Server{
			Addr:    manager.Cfg.GetString("admin.addr"),
			Handler: manager.Provider.AdminRouter(),
		}
		go func() {
			manager.Logger.Info("admin endpoint listening on ", admin.Addr)
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				manager.Logger.Error("admin endpoint failed: ", err)
			}
		}()

		shutdown := make(chan struct{})
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			manager.Logger.Info("received ", sig, ", shutting down")
			close(shutdown)
		}()

		err := dispatcher.Serve(shutdown)

		manager.Provider.OnShutdown()
		admin.Close()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
