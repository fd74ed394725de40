package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/violation.report/internal/api"
	"github.com/banshee-data/violation.report/internal/db"
	"github.com/banshee-data/violation.report/internal/fsutil"
	"github.com/banshee-data/violation.report/internal/units"
	"github.com/banshee-data/violation.report/internal/version"
)

var serveFlags struct {
	listen     string
	units      string
	timezone   string
	assetsHost string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored evidence over HTTP",
	Long: `Starts the evidence API (/api/violations, /api/violations.csv,
/api/stats, /api/config), evidence images (/evidence/{id}), the dashboard
chart (/charts/violations) and the /debug/ admin pages with a tailsql
console over the database.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.listen, "listen", ":8080", "Listen address")
	f.StringVar(&serveFlags.units, "units", "", "Speed display units: "+units.GetValidUnitsString()+" (default from config)")
	f.StringVar(&serveFlags.timezone, "timezone", "UTC", "Timezone for CSV timestamps and hourly buckets")
	f.StringVar(&serveFlags.assetsHost, "assets-host", api.DefaultAssetsHost, "Where chart pages load echarts from")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := units.LoadLocation(serveFlags.timezone)
	if err != nil {
		return err
	}
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	// admin debugging routes (accessible only in dev mode or over Tailscale)
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}
	srv := api.NewServer(db.NewEvidenceStore(database), cfg, api.Options{
		Units:      serveFlags.units,
		Location:   loc,
		FS:         fsutil.OSFileSystem{},
		AssetsHost: serveFlags.assetsHost,
	})
	mux.Handle("/", srv.ServeMux())

	server := &http.Server{
		Addr:              serveFlags.listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("%s listening on %s", version.String(), serveFlags.listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
	return nil
}
