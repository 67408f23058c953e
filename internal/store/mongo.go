package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoStore keeps posts as single documents with their replies embedded.
type MongoStore struct {
	client *mongo.Client
	posts  *mongo.Collection
	users  *mongo.Collection
}

type mongoUser struct {
	ID           string    `bson:"_id"`
	DisplayName  string    `bson:"display_name"`
	Email        string    `bson:"email"`
	EmailLower   string    `bson:"email_lower"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"created_at"`
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := NewMongoStore(client, database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client: client,
		posts:  db.Collection("posts"),
		users:  db.Collection("users"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}, {Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create posts index: %w", err)
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email_lower", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	return nil
}

func (s *MongoStore) ListPostsByCategory(ctx context.Context, category string) ([]Post, error) {
	return s.findPosts(ctx, bson.D{{Key: "category", Value: category}})
}

func (s *MongoStore) AllPosts(ctx context.Context) ([]Post, error) {
	return s.findPosts(ctx, bson.D{})
}

func (s *MongoStore) findPosts(ctx context.Context, filter bson.D) ([]Post, error) {
	cursor, err := s.posts.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]Post, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	for i := range items {
		items[i] = normalizeMongoPost(items[i])
	}
	return items, nil
}

func (s *MongoStore) GetPost(ctx context.Context, postID string) (Post, error) {
	var item Post
	err := s.posts.FindOne(ctx, bson.D{{Key: "_id", Value: postID}}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return normalizeMongoPost(item), nil
}

func (s *MongoStore) InsertPost(ctx context.Context, post Post) error {
	post.Replies = nonNilReplies(post.Replies)
	if _, err := s.posts.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *MongoStore) PrependReply(ctx context.Context, postID string, reply Reply) error {
	result, err := s.posts.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: postID}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "replies", Value: bson.D{
			{Key: "$each", Value: bson.A{reply}},
			{Key: "$position", Value: 0},
		}}}}},
	)
	if err != nil {
		return fmt.Errorf("prepend reply: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) IncrementPostVote(ctx context.Context, postID string, direction Direction) (VoteCounts, error) {
	var updated Post
	err := s.posts.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: postID}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: direction.Column(), Value: 1}}}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.D{{Key: "upvotes", Value: 1}, {Key: "downvotes", Value: 1}}),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return VoteCounts{}, ErrNotFound
	}
	if err != nil {
		return VoteCounts{}, fmt.Errorf("increment post vote: %w", err)
	}
	return updated.Counts(), nil
}

// IncrementReplyVote uses the positional operator so the match and the
// increment happen in one document update.
func (s *MongoStore) IncrementReplyVote(ctx context.Context, postID, replyID string, direction Direction) (VoteCounts, error) {
	var updated Post
	err := s.posts.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: postID}, {Key: "replies.id", Value: replyID}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "replies.$." + direction.Column(), Value: 1}}}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.D{{Key: "replies", Value: 1}}),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		count, countErr := s.posts.CountDocuments(ctx, bson.D{{Key: "_id", Value: postID}})
		if countErr != nil {
			return VoteCounts{}, fmt.Errorf("check post: %w", countErr)
		}
		if count == 0 {
			return VoteCounts{}, ErrNotFound
		}
		return VoteCounts{}, ErrReplyNotFound
	}
	if err != nil {
		return VoteCounts{}, fmt.Errorf("increment reply vote: %w", err)
	}
	idx := updated.FindReply(replyID)
	if idx < 0 {
		return VoteCounts{}, ErrReplyNotFound
	}
	return updated.Replies[idx].Counts(), nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var doc mongoUser
	err := s.users.FindOne(ctx, bson.D{{Key: "email_lower", Value: strings.ToLower(strings.TrimSpace(email))}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return User{
		ID:           doc.ID,
		DisplayName:  doc.DisplayName,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Role:         doc.Role,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user User) error {
	email := strings.TrimSpace(user.Email)
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := s.users.InsertOne(ctx, mongoUser{
		ID:           user.ID,
		DisplayName:  user.DisplayName,
		Email:        email,
		EmailLower:   strings.ToLower(email),
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    createdAt,
	}); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func normalizeMongoPost(post Post) Post {
	post.Replies = nonNilReplies(post.Replies)
	post.Timestamp = post.Timestamp.UTC()
	for i := range post.Replies {
		post.Replies[i].Timestamp = post.Replies[i].Timestamp.UTC()
	}
	return post
}
