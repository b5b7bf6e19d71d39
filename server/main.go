package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v82"

	"github.com/furnifit/furnifit-server/database"
	"github.com/furnifit/furnifit-server/handlers"
	middleware "github.com/furnifit/furnifit-server/middlewares"
	"github.com/furnifit/furnifit-server/routes"
	"github.com/furnifit/furnifit-server/utils"
)

const balanceRefreshPeriod = 10 * time.Second

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Printf("No .env file loaded: %s", err)
	}

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Error closing database connection: %v", closeErr)
		}
	}()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Fatal("REDIS_URL is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("Invalid Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opt)

	PORT := os.Getenv("PORT")
	if PORT == "" {
		PORT = "8080"
	}

	webhookBase := os.Getenv("WEBHOOK_BASE")
	registrationPath := os.Getenv("WEBHOOK_REGISTRATION")
	otpPath := os.Getenv("WEBHOOK_OTP_SENDING")
	if webhookBase == "" || registrationPath == "" || otpPath == "" {
		log.Fatal("WEBHOOK_BASE, WEBHOOK_REGISTRATION and WEBHOOK_OTP_SENDING are required")
	}

	generationEndpoint := os.Getenv("GENERATION_ENDPOINT")
	if generationEndpoint == "" {
		log.Fatal("GENERATION_ENDPOINT is required")
	}

	if os.Getenv("SESSION_JWT_SECRET") == "" {
		log.Fatal("SESSION_JWT_SECRET is required")
	}

	stripe.Key = os.Getenv("STRIPE_KEY")

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:5173"
	}

	// S3 is optional; without it, history previews fall back to inline
	// data URIs.
	var s3Uploader *s3manager.Uploader
	bucket := os.Getenv("AWS_BUCKET_NAME")
	region := os.Getenv("AWS_REGION")
	accessKey := os.Getenv("AWS_S3_BUCKET_ACCESS_KEY")
	secretKey := os.Getenv("AWS_S3_BUCKET_SECRET_ACCESS_KEY")

	if bucket != "" && region != "" && accessKey != "" && secretKey != "" {
		sess := session.Must(session.NewSession(&aws.Config{
			Region:      aws.String(region),
			Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
		}))
		s3Uploader = s3manager.NewUploader(sess)
	} else {
		log.Println("S3 not configured, storing previews inline")
	}

	sessions := utils.NewSessionStore(redisClient)
	otpManager := handlers.NewOtpManager(redisClient, webhookBase, otpPath)

	userHandler := &handlers.UserHandler{
		DB:               db,
		Sessions:         sessions,
		Otp:              otpManager,
		WebhookBase:      webhookBase,
		RegistrationPath: registrationPath,
	}

	uploadHandler := &handlers.UploadHandler{
		Redis:              redisClient,
		Sessions:           sessions,
		S3Bucket:           bucket,
		GenerationEndpoint: generationEndpoint,
	}
	if s3Uploader != nil {
		uploadHandler.S3Uploader = s3Uploader
	}

	tokenHandler := &handlers.TokenHandler{
		DB:       db,
		Sessions: sessions,
		PriceIDs: map[int]string{
			10: os.Getenv("STRIPE_PRICE_ID_10"),
			20: os.Getenv("STRIPE_PRICE_ID_20"),
			50: os.Getenv("STRIPE_PRICE_ID_50"),
		},
		FrontendURL: frontendURL,
	}

	// Keep every live session's cached balance in step with the record
	// store. The HTTP refresh route is the same read on demand.
	go func() {
		for {
			if err := utils.RefreshSessionBalances(context.Background(), db, sessions); err != nil {
				log.Printf("Balance refresh failed: %v", err)
			}
			time.Sleep(balanceRefreshPeriod)
		}
	}()

	mux := http.NewServeMux()

	routes.RegisterUserRoutes(mux, userHandler, sessions)
	routes.UploadRoutes(mux, uploadHandler, sessions)
	routes.TokenRoutes(mux, tokenHandler, sessions)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "This route does not exist")
	})

	handler := middleware.CORS(
		middleware.SetCommonHeaders(
			middleware.GlobalRateLimiter(redisClient)(mux),
		),
	)

	fmt.Printf("server is running on http://localhost:%s\n", PORT)

	log.Fatal(http.ListenAndServe(":"+PORT, handler))
}
