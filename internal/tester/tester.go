package tester

import (
	"os"
	"path/filepath"

	"github.com/emrgen/communication/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	testPath string
	db       *gorm.DB
)

func Setup() {
	RemoveDBFile()

	_ = os.Setenv("ENV", "test")

	var err error
	testPath, err = os.MkdirTemp("", "communication-test-")
	if err != nil {
		panic(err)
	}

	db, err = gorm.Open(sqlite.Open(filepath.Join(testPath, "communication.db")), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	err = model.Migrate(db)
	if err != nil {
		panic(err)
	}
}

func TestDB() *gorm.DB {
	return db
}

func RemoveDBFile() {
	if testPath == "" {
		return
	}

	err := os.RemoveAll(testPath)
	if err != nil {
		panic(err)
	}
	testPath = ""
}
