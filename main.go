package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chat-client/internal/client"
	"chat-client/internal/config"
	"chat-client/internal/conn"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/rest"
	"chat-client/internal/store"
	"chat-client/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	st, err := store.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("failed to open state store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if cfg.Token != "" {
		if err := st.SaveToken(ctx, cfg.Token); err != nil {
			log.Fatalf("failed to store bootstrap token: %v", err)
		}
	}
	if _, err := st.Token(ctx); err != nil {
		log.Fatalf("no session token: set CHAT_TOKEN or log in first: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	emitter := telemetry.NewLifecycleEmitter(publisher, "ws_lifecycle.client", "chat-client", cfg.Environment)

	api := rest.NewClient(cfg.ServerURL, st)
	manager := conn.NewManager(cfg.ServerURL+cfg.WSPath, st, cfg.ReconnectInterval)
	manager.SetEventSink(emitter)

	chat := client.New(api, manager, st, cfg.TypingTTL)
	defer chat.Close()

	if err := chat.Start(ctx); err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	go runDebugServer(cfg.DebugAddr, chat)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("shutting down")
}

// runDebugServer exposes sync state and metrics for local inspection.
func runDebugServer(addr string, chat *client.Client) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/debug/sync", func(c *gin.Context) {
		focused := chat.FocusedRoom()
		c.JSON(http.StatusOK, gin.H{
			"connection":   chat.ConnectionState().String(),
			"focused_room": focused,
			"rooms":        len(chat.Rooms()),
			"typing":       chat.TypingUsers(focused),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := router.Run(addr); err != nil {
		log.Printf("debug server error: %v", err)
	}
}
