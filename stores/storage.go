package stores

import (
	"context"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
	"meme-studio/stores/filesystem"
	"meme-studio/stores/gcp"
	"meme-studio/stores/memory"
	"meme-studio/stores/sqlite"
)

// GetStore picks the meme record store from STORAGE_TYPE.
func GetStore(ctx context.Context) core.MemeStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.MemeStore

	storageField := logrus.Fields{
		"storage_type": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data" // Default path
		}
		storageField["base_path"] = basePath
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "memes.db" // Default filename
		}
		storageField["data_source_name"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "firestore":
		projectID := os.Getenv("FIRESTORE_PROJECT")
		if projectID == "" {
			logrus.Fatal("FIRESTORE_PROJECT environment variable must be set for firestore storage type")
		}
		client, err := firestore.NewClient(ctx, projectID)
		if err != nil {
			logrus.WithField("project_id", projectID).Fatalf("Failed to create Firestore client: %v", err)
		}
		collection := os.Getenv("FIRESTORE_COLLECTION")
		storageField["project_id"] = projectID
		storageField["collection"] = collection
		store = gcp.NewStore(client, collection)
	default:
		store = memory.NewStore()
		storageField["storage_type"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
