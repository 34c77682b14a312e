package db

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	SessionsCollection        *mongo.Collection
	SessionMessagesCollection *mongo.Collection
	ExcursionsCollection      *mongo.Collection
	UserCollection            *mongo.Collection
	UserDataCollection        *mongo.Collection
	Client                    *mongo.Client
)

// Initialize MongoDB connection
func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	ClientOptions := options.Client().ApplyURI(mongoURI)
	var err error
	Client, err = mongo.Connect(context.TODO(), ClientOptions)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	SessionsCollection = Client.Database("verdadb").Collection("sessions")
	SessionMessagesCollection = Client.Database("verdadb").Collection("sessionmessages")
	ExcursionsCollection = Client.Database("verdadb").Collection("excursions")
	UserCollection = Client.Database("verdadb").Collection("users")
	UserDataCollection = Client.Database("verdadb").Collection("userdata")
}
