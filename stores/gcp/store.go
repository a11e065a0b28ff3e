package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"meme-studio/core"
)

// DefaultCollection holds one document per meme, keyed by meme id.
const DefaultCollection = "memes"

// memeDoc is the stored shape of a meme. The document id is the meme id.
type memeDoc struct {
	Name         string             `firestore:"name"`
	ImageURL     string             `firestore:"imageUrl"`
	DeleteHandle string             `firestore:"deleteHandle"`
	CreatedAt    time.Time          `firestore:"createdAt"`
	CreatedBy    string             `firestore:"createdBy"`
	Layers       []core.LayerRecord `firestore:"layers"`
	Likes        int                `firestore:"likes"`
	Views        int                `firestore:"views"`
}

// Store is a Firestore-backed core.MemeStore. Listing by owner needs a
// composite index on (createdBy, createdAt, __name__).
type Store struct {
	client     *firestore.Client
	collection string
}

// NewStore creates a Store on the given collection; an empty name selects
// DefaultCollection.
func NewStore(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection}
}

func (s *Store) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func notFound(id string) error {
	return fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
}

func (s *Store) Create(ctx context.Context, meme *core.MemeRecord) (string, error) {
	id := meme.ID
	if id == "" {
		id = ulid.Make().String()
	}
	createdAt := meme.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	doc := memeDoc{
		Name:         meme.Name,
		ImageURL:     meme.ImageURL,
		DeleteHandle: meme.DeleteHandle,
		CreatedAt:    createdAt,
		CreatedBy:    meme.CreatedBy,
		Layers:       meme.Layers,
		Likes:        meme.Likes,
		Views:        meme.Views,
	}
	_, err := s.docRef(id).Create(ctx, doc)
	if status.Code(err) == codes.AlreadyExists {
		return "", fmt.Errorf("meme %q already exists", id)
	}
	if err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{"meme_id": id, "user_id": meme.CreatedBy}).Info("Meme created successfully")
	return id, nil
}

func snapshotToMeme(snap *firestore.DocumentSnapshot) (*core.MemeRecord, error) {
	var doc memeDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("invalid meme document %s: %w", snap.Ref.ID, err)
	}
	return &core.MemeRecord{
		ID:           snap.Ref.ID,
		Name:         doc.Name,
		ImageURL:     doc.ImageURL,
		DeleteHandle: doc.DeleteHandle,
		CreatedAt:    doc.CreatedAt.UTC(),
		CreatedBy:    doc.CreatedBy,
		Layers:       doc.Layers,
		Likes:        doc.Likes,
		Views:        doc.Views,
	}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*core.MemeRecord, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToMeme(snap)
}

func (s *Store) List(ctx context.Context, query core.MemeQuery) (*core.MemePage, error) {
	query = query.Normalize()

	dir := firestore.Desc
	if query.Order == core.SortOldest {
		dir = firestore.Asc
	}
	q := s.client.Collection(s.collection).Query
	if query.Owner != "" {
		q = q.Where("createdBy", "==", query.Owner)
	}
	q = q.OrderBy("createdAt", dir).OrderBy(firestore.DocumentID, dir)
	if query.PageToken != "" {
		cursor, err := core.DecodeCursor(query.PageToken)
		if err != nil {
			return nil, err
		}
		q = q.StartAfter(cursor.CreatedAt, s.docRef(cursor.ID))
	}

	iter := q.Limit(query.PageSize + 1).Documents(ctx)
	defer iter.Stop()

	page := &core.MemePage{Memes: []*core.MemeRecord{}}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		meme, err := snapshotToMeme(snap)
		if err != nil {
			return nil, err
		}
		page.Memes = append(page.Memes, meme)
	}
	if len(page.Memes) > query.PageSize {
		page.Memes = page.Memes[:query.PageSize]
		page.NextPageToken = core.EncodeCursor(page.Memes[query.PageSize-1])
	}
	return page, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.docRef(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return notFound(id)
	}
	return err
}

// IncrementLikes bumps the counter in a transaction so the returned count is
// the one written.
func (s *Store) IncrementLikes(ctx context.Context, id string) (int, error) {
	var likes int
	ref := s.docRef(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, _ := snap.Data()["likes"].(int64)
		likes = int(current) + 1
		return tx.Update(ref, []firestore.Update{{Path: "likes", Value: likes}})
	})
	if status.Code(err) == codes.NotFound {
		return 0, notFound(id)
	}
	if err != nil {
		return 0, err
	}
	return likes, nil
}

func (s *Store) IncrementViews(ctx context.Context, id string) error {
	_, err := s.docRef(id).Update(ctx, []firestore.Update{
		{Path: "views", Value: firestore.Increment(1)},
	})
	if status.Code(err) == codes.NotFound {
		return notFound(id)
	}
	return err
}
