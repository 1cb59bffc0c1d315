package initial

import (
	"log"
	"os"
	"strings"
	"time"

	"koo/internal/config"
	"koo/internal/modules/ai/domain/rag"
	"koo/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenGormDB 打开关系库并自动迁移内容表，连接由调用方关闭
func OpenGormDB(conf *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(conf.DatabaseConfig)
	if err != nil {
		return nil, err
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, rag.Stage(rag.StageContentStore, err)
	}
	// 自动迁移，如果没有建表，会自动创建对应的表
	if err := db.AutoMigrate(&rag.Document{}, &rag.Chunk{}, &rag.QueryLog{}); err != nil {
		return nil, rag.Stage(rag.StageContentStore, err)
	}
	zlog.Info("content store ready", zap.String("driver", db.Dialector.Name()))
	return db, nil
}

// Dialector 按 driver 选择方言
func Dialector(c config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "mysql":
		return mysql.Open(c.BuildDSN()), nil
	case "postgres", "postgresql":
		return postgres.Open(c.BuildDSN()), nil
	}
	return nil, rag.Validationf("unsupported database driver %q", c.Driver)
}
