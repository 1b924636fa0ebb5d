// Package mysql 建立 MySQL 连接、迁移表结构并构造 Repository 层
package mysql

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shop_chat_server/internal/config"
	"shop_chat_server/internal/dao/mysql/repository"
	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/errorx"
)

// DSN 格式：user:password@tcp(host:port)/database?params
func DSN(c config.MysqlConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DatabaseName)
}

// Init 连接数据库并自动迁移 user_info、orders 两张表
func Init(conf *config.Config) (*repository.Repositories, error) {
	logLevel := gormlogger.Warn
	if conf.MainConfig.Mode == "dev" {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(mysqldriver.Open(DSN(conf.MysqlConfig)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeDBError, "connect mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeDBError, "get sql.DB")
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 只新增表和字段，不会删除已有列
	if err := db.AutoMigrate(&model.UserInfo{}, &model.Order{}); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeDBError, "auto migrate")
	}

	zap.L().Info("mysql connected",
		zap.String("host", conf.MysqlConfig.Host),
		zap.String("database", conf.MysqlConfig.DatabaseName))
	return repository.NewRepositories(db), nil
}
