package main

import (
	"flag"
	"log"
	"os"
	"strconv"

	"chunkvault/backend/api/handler"
	"chunkvault/backend/api/middleware"
	"chunkvault/backend/api/route"
	"chunkvault/backend/common"
	"chunkvault/backend/library/storage"
	"chunkvault/backend/library/token"
	"chunkvault/backend/model"
	"chunkvault/backend/service"

	"github.com/gin-gonic/gin"
)

func main() {
	flag.Parse()
	if *common.PrintVersion {
		println(common.Version)
		os.Exit(0)
	}
	if *common.PrintHelpFlag {
		common.PrintHelp()
		os.Exit(0)
	}
	common.SetupGinLog()
	common.SysLog("chunkvault " + common.Version + " started")
	if os.Getenv("GIN_MODE") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := common.InitConfig(); err != nil {
		common.FatalLog(err)
	}
	// Initialize Redis
	if err := common.InitRedisClient(); err != nil {
		common.FatalLog(err)
	}
	// Initialize SQL Database
	if err := model.InitDB(); err != nil {
		common.FatalLog(err)
	}
	defer func() {
		if err := model.CloseDB(); err != nil {
			common.FatalLog(err)
		}
	}()

	// Initialize storage nodes
	registry, err := storage.NewRegistryFromConfig(common.StorageNodes, common.StorageRoot)
	if err != nil {
		common.FatalLog(err)
	}
	common.SysLog("storage registry initialized with " + strconv.Itoa(len(registry.Nodes())) + " node(s)")

	tokens := token.NewStore()
	handler.Setup(
		service.NewUploadService(tokens, registry),
		service.NewDownloadService(tokens, registry),
	)
	handler.SetupStatus(registry)
	handler.RegisterValidators()

	// Initialize HTTP server
	server := gin.Default()
	server.Use(middleware.CORS())
	route.SetRouter(server)

	port := strconv.Itoa(*common.Port)
	common.SysLog("server listening on port: " + port)
	if err := server.Run(":" + port); err != nil {
		log.Fatal("failed to start server: " + err.Error())
	}
}
