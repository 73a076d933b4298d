package main

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/plateful/plateful/filestore"
	"github.com/plateful/plateful/server"
	"github.com/plateful/plateful/server/middlewares"
	"github.com/plateful/plateful/stories"
	"github.com/plateful/plateful/utils"
	"github.com/plateful/plateful/utils/dotenv"
	Flag "github.com/plateful/plateful/utils/flag"
	Logger "github.com/plateful/plateful/utils/log"
)

func main() {
	Flag.Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	if !*Flag.ByPassAuth {
		middlewares.Setup()
	}

	db, err := utils.GetDBConnection()
	if err != nil {
		Logger.Log.Fatal("fail to connect to database: ", err)
	}

	bucket := filestore.DevS3Bucket
	if os.Getenv("PLATEFUL_ENV") == dotenv.ProdEnv {
		bucket = filestore.ProdS3Bucket
	}
	files, err := filestore.NewS3FileStore(bucket, os.Getenv("MEDIA_URL_PREFIX"))
	if err != nil {
		Logger.Log.Fatal("fail to setup file store: ", err)
	}

	// Seen cache is best-effort, the server runs without redis.
	var cache stories.SeenCache
	if seenStore, err := utils.GetRedisSeenStore(); err != nil {
		Logger.Log.Warn("redis unavailable, seen marks served from DB only: ", err)
	} else {
		cache = seenStore
	}

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	if !*Flag.ByPassAuth {
		router.Use(middlewares.JWT())
	}

	srv := server.NewServer(db, files, cache)
	srv.RegisterRoutes(router)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	Logger.Log.Info("api server starts up")
	router.Run(":8080")
}
