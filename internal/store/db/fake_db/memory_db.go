package fake_db

import (
	"fmt"
	"github.com/denisschmidt/localstore/internal/store/db"
	"github.com/google/uuid"
)

// New opens a throwaway in-memory database. It panics if sqlite cannot be opened,
// which only happens when the test binary is built without a driver.
func New(chunkSize int) *db.DB {
	return NewWithQuota(chunkSize, 0)
}

func NewWithQuota(chunkSize int, maxBytes int64) *db.DB {
	d, err := db.Open(ephemeralDbURI(), db.Options{
		ChunkSize:     chunkSize,
		MaxStoreBytes: maxBytes,
	})
	if err != nil {
		panic(err)
	}
	return d
}

func ephemeralDbURI() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}
