package imagestores

import (
	"os"

	"github.com/sirupsen/logrus"

	"meme-studio/core"
	"meme-studio/imagestores/filesystem"
	"meme-studio/imagestores/imgur"
	"meme-studio/imagestores/memory"
	"meme-studio/imagestores/s3"
)

// GetImageStore picks the image host from IMAGE_STORE. Local backends serve
// their files under baseURL/media/ and also implement http.Handler.
func GetImageStore(baseURL string) core.ImageStore {
	storeType := os.Getenv("IMAGE_STORE")
	var store core.ImageStore

	storeField := logrus.Fields{
		"image_store": storeType,
	}

	switch storeType {
	case "filesystem":
		mediaPath := os.Getenv("MEDIA_PATH")
		if mediaPath == "" {
			mediaPath = "./media"
		}
		storeField["media_path"] = mediaPath
		store = filesystem.NewStore(mediaPath, baseURL)
	case "imgur":
		clientID := os.Getenv("IMGUR_CLIENT_ID")
		if clientID == "" {
			logrus.Fatal("IMGUR_CLIENT_ID environment variable must be set for imgur image store")
		}
		apiURL := os.Getenv("IMGUR_API_URL")
		storeField["api_url"] = apiURL
		store = imgur.NewStore(clientID, apiURL)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 image store")
		}
		storeField["bucket_name"] = bucketName
		store = s3.NewStore(bucketName, os.Getenv("S3_PUBLIC_URL"))
	default:
		store = memory.NewStore(baseURL)
		storeField["image_store"] = "in-memory"
	}
	logrus.WithFields(storeField).Info("Use image store")
	return store
}
