package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"cpesync/internal/config"
	"cpesync/internal/routes"
	"cpesync/internal/store"
	"cpesync/internal/ws"
)

func main() {
	// Load .env (non-fatal if missing in production)
	_ = godotenv.Load()

	cfg := config.Load()

	st, err := store.New(cfg)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("upload dir init failed: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	r := gin.Default()
	routes.Register(r, st, hub, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("CPE Sync server running on port %s (store=%s)", port, cfg.StoreBackend)
	if err := r.Run(":" + port); err != nil {
		log.Println("server exited with error:", err)
		os.Exit(1)
	}
}
