package main

import (
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

	db, err := utils.GetDBConnection()
	if err != nil {
		Logger.Log.Fatal("fail to connect to database: ", err)
	}

	utils.DatabaseSetupAndMigration(db)
	Logger.Log.Info("migration finished")
}
