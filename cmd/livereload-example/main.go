package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"livereload.io/livereload"
)

// pages renders templates from dir and re-parses them on demand.
type pages struct {
	dir       string
	mu        sync.RWMutex
	templates *template.Template
	loadedAt  time.Time
}

func (p *pages) load() error {
	t, err := template.ParseGlob(filepath.Join(p.dir, "*.html"))
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.templates = t
	p.loadedAt = time.Now()
	p.mu.Unlock()
	log.Printf("loaded templates from [%s]", p.dir)
	return nil
}

func (p *pages) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.URL.Path)
	if name == "/" || name == "." {
		name = "index.html"
	}

	p.mu.RLock()
	t, loadedAt := p.templates, p.loadedAt
	p.mu.RUnlock()

	if t == nil || t.Lookup(name) == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, name, map[string]interface{}{"LoadedAt": loadedAt}); err != nil {
		log.Printf("could not render [%s]: %s", name, err)
	}
}

func main() {
	var (
		dir  string
		port int
	)

	var rootCmd = &cobra.Command{
		Use: os.Args[0],
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &pages{dir: dir}
			if err := p.load(); err != nil {
				return err
			}

			server, err := livereload.New(&livereload.Config{Port: port}, p)
			if err != nil {
				return err
			}

			// Templates are re-parsed before browsers are told to reload.
			server.Watch(filepath.Join(dir, "*.html"), livereload.Func(p.load), livereload.Immediate)

			// Go sources of this program need a restart, browsers are left alone.
			server.Watch("pkg:livereload.io/cmd/livereload-example", livereload.Func(func() error {
				log.Println("sources changed, restart to apply")
				return nil
			}), livereload.Forever)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-interrupt
				log.Println("gracefully shutting down")
				cancel()
			}()

			if err := server.Serve(ctx); err != nil {
				return err
			}
			log.Println("shutdown complete")
			return nil
		},
	}

	rootCmd.Flags().StringVar(&dir, "templates", "templates", "Directory with *.html templates.")
	rootCmd.Flags().IntVar(&port, "port", 8080, "Port to serve on.")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
