// cmd/consistentsdbd is a thin Gin HTTP front door over a BackingStore,
// speaking the JSON wire protocol internal/backingstore/httpstore drives.
// It plays the role of the remote, eventually-consistent attribute store
// in a two-process demo — it carries no marker or journal logic of its
// own, since that is the Consistency Engine's job, run in-process inside
// consistentsdbctl.
//
// Example:
//
//	./consistentsdbd --addr :8080
//	./consistentsdbctl --backing=http --backend-addr=http://localhost:8080 put ...
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"consistentsdb/internal/api"
	"consistentsdb/internal/backingstore/memory"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address (host:port)")
	flag.Parse()

	store := memory.New()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery())

	handler := api.NewHandler(store)
	handler.Register(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("consistentsdbd listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down consistentsdbd")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
