package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"swiftdrop-backend/internal/database"
	"swiftdrop-backend/internal/engine"
	"swiftdrop-backend/internal/handlers"
	"swiftdrop-backend/internal/location"
	"swiftdrop-backend/internal/middleware"
	"swiftdrop-backend/internal/models"
	"swiftdrop-backend/internal/notify"
	"swiftdrop-backend/internal/services"
	"swiftdrop-backend/internal/store"
	"swiftdrop-backend/internal/websocket"
	"swiftdrop-backend/internal/zones"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 SWIFTDROP BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	ctx := context.Background()

	// Load .env file
	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("❌ FATAL ERROR: DATABASE_URL environment variable is required")
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Connect to database
	db, err := database.Connect(dbURL)
	if err != nil {
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Fatal(err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Println("❌ FATAL ERROR: Database migrations failed")
		log.Fatal(err)
	}

	// Seed database
	if err := database.SeedUsers(db); err != nil {
		log.Println("❌ FATAL ERROR: User seeding failed")
		log.Fatal(err)
	}

	// Initialize Firebase (Firestore holds the live driver documents, so the
	// engine cannot run without it)
	firebaseApp, err := services.NewFirebaseApp(ctx)
	if err != nil {
		log.Println("❌ FATAL ERROR: Firebase initialization failed")
		log.Fatal(err)
	}
	log.Println("✅ Firebase app initialized")

	firestoreClient, err := services.NewFirestoreClient(ctx, firebaseApp)
	if err != nil {
		log.Println("❌ FATAL ERROR: Firestore initialization failed")
		log.Fatal(err)
	}
	defer firestoreClient.Close()
	log.Println("✅ Firestore client initialized")

	driverStore := store.NewFirestoreStore(firestoreClient)

	// Initialize Firebase Cloud Messaging (optional; alerts degrade to
	// websocket-only without it)
	var fcmService *services.FCMService
	fcmService, err = services.NewFCMService(ctx, firebaseApp)
	if err != nil {
		log.Printf("⚠️  Failed to initialize FCM: %v (push notifications disabled)", err)
		fcmService = nil
	} else {
		log.Println("✅ Firebase Cloud Messaging initialized")
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Acknowledgment registry for blocking violation modals
	acks := notify.NewAckRegistry()

	// Reverse geocoding for spoken violation notices (optional)
	var geocoder engine.ReverseGeocoder
	if geocodingService, err := services.NewGeocodingService(); err != nil {
		log.Printf("⚠️  Geocoding disabled: %v", err)
	} else {
		geocoder = geocodingService
		log.Println("✅ Geocoding service initialized")
	}

	// Crosswalk hazard discovery via Overpass
	overpass := zones.NewOverpassClient()

	// Location history recorder (Postgres) plus live admin broadcast
	history := database.NewLocationHistory(db)
	recorder := engine.MultiRecorder{history, &adminBroadcaster{hub: wsHub}}

	feeds := location.NewFeedRegistry()

	// Per-driver engine manager
	manager := engine.NewManager(ctx, engine.ManagerDeps{
		Store:    driverStore,
		Branches: driverStore,
		Hazards:  overpass,
		Feeds:    feeds,
		Recorder: recorder,
		Notifier: func(driverID string) notify.Notifier {
			var pusher notify.Pusher
			if fcmService != nil {
				pusher = fcmService
			}
			return notify.NewPushNotifier(driverID, wsHub, pusher, acks)
		},
		Geocoder: geocoder,
		Config:   engine.DefaultConfig(),
	})
	defer manager.Shutdown()
	log.Println("✅ Overspeed engine manager initialized")

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub, acks.Resolve))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Driver endpoints (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			// Location check-ins (sent continuously while delivering)
			r.Post("/driver/location", handlers.UpdateLocation(manager, feeds))

			// Violations
			r.Get("/driver/violations", handlers.GetViolations(driverStore))
			r.Post("/driver/violations/ack", handlers.AckViolation(acks))

			// Active slowdown zones
			r.Get("/driver/zones", handlers.GetZones(manager))

			// Persisted location history
			r.Get("/driver/location-history", handlers.GetLocationHistory(history))
		})
	})

	// Get port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Printf("⚠️  PORT not set, using default: %s", port)
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", port)
	log.Println("🔌 Ready to accept requests!")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Start server
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Println("❌ FATAL ERROR: Server failed to start")
		log.Fatal(err)
	}
}

// adminBroadcaster mirrors each persisted snapshot to connected admin
// dashboards over the websocket hub.
type adminBroadcaster struct {
	hub *websocket.Hub
}

func (b *adminBroadcaster) Record(ctx context.Context, loc models.DriverLocation) error {
	b.hub.BroadcastToRole("admin", map[string]interface{}{
		"type": "driver_location_update",
		"data": loc,
	})
	return nil
}
