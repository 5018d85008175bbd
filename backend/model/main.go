package model

import (
	"chunkvault/backend/common"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() (err error) {
	common.SysLog("using SQLite as database: " + common.SQLitePath)
	dbInstance, err := gorm.Open(sqlite.Open(common.SQLitePath), &gorm.Config{
		PrepareStmt: true,
	})
	if err != nil {
		common.FatalLog("failed to connect database: " + err.Error())
		return err
	}

	DB = dbInstance

	err = DB.AutoMigrate(
		&File{},
		&Chunk{},
		&Folder{},
		&UserUsage{},
	)
	if err != nil {
		common.FatalLog("failed to auto migrate database schema: " + err.Error())
		return err
	}

	common.SysLog("database initialized successfully")
	return nil
}

func CloseDB() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	common.SysLog("closing database connection")
	return sqlDB.Close()
}
