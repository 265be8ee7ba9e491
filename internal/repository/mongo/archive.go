package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rrens/voice-agent/internal/domain"
)

const callsCollection = "calls"

type callDoc struct {
	ID           string    `bson:"_id"`
	CustomerName string    `bson:"customer_name"`
	PhoneNumber  string    `bson:"phone_number"`
	CreatedAt    time.Time `bson:"created_at"`
	Turns        []turnDoc `bson:"turns"`
}

type turnDoc struct {
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	Source    string    `bson:"source,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// CallArchive keeps one document per call with its turns embedded in order
type CallArchive struct {
	client *mongo.Client
	calls  *mongo.Collection
}

// Open connects to uri and uses the calls collection of database
func Open(ctx context.Context, uri, database string, timeout time.Duration) (*CallArchive, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}

	clientOpts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		clientOpts.SetConnectTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return &CallArchive{
		client: client,
		calls:  client.Database(database).Collection(callsCollection),
	}, nil
}

func (a *CallArchive) SaveCall(ctx context.Context, session *domain.Session) error {
	update := bson.M{
		"$set": bson.M{
			"customer_name": session.CustomerName,
			"phone_number":  session.PhoneNumber,
		},
		"$setOnInsert": bson.M{
			"created_at": session.CreatedAt.UTC(),
		},
		"$push": bson.M{
			"turns": bson.M{"$each": toTurnDocs(session.Turns)},
		},
	}

	_, err := a.calls.UpdateByID(ctx, session.ID, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save call: %w", err)
	}
	return nil
}

func (a *CallArchive) AppendTurns(ctx context.Context, callID string, turns []domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	res, err := a.calls.UpdateByID(ctx, callID, bson.M{
		"$push": bson.M{"turns": bson.M{"$each": toTurnDocs(turns)}},
	})
	if err != nil {
		return fmt.Errorf("failed to append turns: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("failed to append turns: call %s is not archived", callID)
	}
	return nil
}

func (a *CallArchive) ListTurns(ctx context.Context, callID string) ([]domain.Turn, error) {
	var doc callDoc
	err := a.calls.FindOne(ctx, bson.M{"_id": callID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}

	turns := make([]domain.Turn, 0, len(doc.Turns))
	for _, t := range doc.Turns {
		turns = append(turns, domain.Turn{
			Role:      domain.MessageRole(t.Role),
			Content:   t.Content,
			Source:    domain.TurnSource(t.Source),
			CreatedAt: t.CreatedAt,
		})
	}
	return turns, nil
}

// Ping verifies the connection is alive
func (a *CallArchive) Ping(ctx context.Context) error {
	return a.client.Ping(ctx, nil)
}

func (a *CallArchive) Close() error {
	return a.client.Disconnect(context.Background())
}

func toTurnDocs(turns []domain.Turn) []turnDoc {
	docs := make([]turnDoc, len(turns))
	for i, t := range turns {
		docs[i] = turnDoc{
			Role:      string(t.Role),
			Content:   t.Content,
			Source:    string(t.Source),
			CreatedAt: t.CreatedAt.UTC(),
		}
	}
	return docs
}
