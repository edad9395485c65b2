package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roomiematch/roomiematch/backend/model"
)

const (
	usersCollection = "users"
	mutateAttempts  = 3
)

// Mongo stores users in a single collection. Mutate uses the revision field
// for optimistic concurrency.
type Mongo struct {
	client *mongo.Client
	users  *mongo.Collection
	now    func() time.Time
}

// OpenMongo connects to uri, verifies the connection and ensures indexes.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("cannot reach mongo: %w", err)
	}

	m := &Mongo{client: client, users: client.Database(database).Collection(usersCollection), now: time.Now}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "account.email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "account.username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "housingInfo.selectedLocations.id", Value: 1}}},
		{Keys: bson.D{{Key: "housingInfo.selectedLocations.borough", Value: 1}}},
		{Keys: bson.D{{Key: "professionalInfo.occupation", Value: 1}}},
		{Keys: bson.D{{Key: "metadata.registrationDate", Value: -1}}},
		{Keys: bson.D{{Key: "metadata.onboardingCompleted", Value: 1}}},
		{Keys: bson.D{{Key: "metadata.profileCompleteness", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func duplicateKey(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if strings.Contains(err.Error(), "username") {
		return &DuplicateError{Field: "username"}
	}
	return &DuplicateError{Field: "email"}
}

func (m *Mongo) Create(ctx context.Context, u *model.User) error {
	touch(u, m.now())
	u.Revision = 1
	if _, err := m.users.InsertOne(ctx, u); err != nil {
		return duplicateKey(err)
	}
	return nil
}

func (m *Mongo) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	if err := m.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) Get(ctx context.Context, id string) (*model.User, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *Mongo) GetMany(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := m.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (m *Mongo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.findOne(ctx, bson.M{"account.email": strings.ToLower(email)})
}

// Mutate retries when another writer bumps the revision between read and
// write, and gives up with ErrConflict after a few attempts.
func (m *Mongo) Mutate(ctx context.Context, id string, fn func(*model.User) error) (*model.User, error) {
	for attempt := 0; attempt < mutateAttempts; attempt++ {
		u, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		rev := u.Revision
		if err := fn(u); err != nil {
			return nil, err
		}
		u.ID = id
		touch(u, m.now())
		u.Revision = rev + 1

		res, err := m.users.ReplaceOne(ctx, bson.M{"_id": id, "revision": rev}, u)
		if err != nil {
			return nil, duplicateKey(err)
		}
		if res.MatchedCount == 1 {
			return u, nil
		}
	}
	return nil, ErrConflict
}

func (m *Mongo) Delete(ctx context.Context, id string) error {
	res, err := m.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

var newestFirst = bson.D{{Key: "metadata.registrationDate", Value: -1}, {Key: "_id", Value: 1}}

func (m *Mongo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.User, error) {
	cur, err := m.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*model.User
	for cur.Next(ctx) {
		var u model.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, cur.Err()
}

func (m *Mongo) FindCandidates(ctx context.Context, q CandidateQuery) ([]*model.User, error) {
	filter := bson.M{
		"_id":                              bson.M{"$ne": q.ExcludeID},
		"metadata.isActive":                true,
		"metadata.onboardingCompleted":     true,
		"housingInfo.selectedLocations.id": bson.M{"$in": q.LocationIDs},
	}
	opts := options.Find().SetSort(newestFirst)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return m.find(ctx, filter, opts)
}

func (q ListQuery) filter() bson.M {
	f := bson.M{}
	if q.OnboardingCompleted != nil {
		f["metadata.onboardingCompleted"] = *q.OnboardingCompleted
	}
	if q.IsActive != nil {
		f["metadata.isActive"] = *q.IsActive
	}
	if q.Occupation != "" {
		f["professionalInfo.occupation"] = q.Occupation
	}
	if q.Borough != "" {
		f["housingInfo.selectedLocations.borough"] = q.Borough
	}
	return f
}

func (m *Mongo) List(ctx context.Context, q ListQuery) ([]*model.User, int, error) {
	filter := q.filter()
	total, err := m.users.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(q.offset())).
		SetLimit(int64(q.Limit))
	users, err := m.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return users, int(total), nil
}

func (m *Mongo) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	st := &Stats{Completeness: emptyBuckets()}

	counts := []struct {
		dst    *int
		filter bson.M
	}{
		{&st.Total, bson.M{}},
		{&st.Active, bson.M{"metadata.isActive": true}},
		{&st.Onboarded, bson.M{"metadata.onboardingCompleted": true}},
		{&st.RegisteredSince, bson.M{"metadata.registrationDate": bson.M{"$gte": since}}},
	}
	for _, c := range counts {
		n, err := m.users.CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
		*c.dst = int(n)
	}

	withLocations := bson.D{{Key: "$match", Value: bson.M{"housingInfo.selectedLocations": bson.M{"$exists": true, "$ne": bson.A{}}}}}
	unwind := bson.D{{Key: "$unwind", Value: "$housingInfo.selectedLocations"}}

	var locs []struct {
		ID struct {
			Borough      string `bson:"borough"`
			Neighborhood string `bson:"neighborhood"`
		} `bson:"_id"`
		Count int `bson:"count"`
	}
	err := m.aggregate(ctx, &locs, mongo.Pipeline{
		withLocations,
		unwind,
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"borough":      "$housingInfo.selectedLocations.borough",
				"neighborhood": "$housingInfo.selectedLocations.neighborhood",
			},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id.borough", Value: 1}, {Key: "_id.neighborhood", Value: 1}}}},
		{{Key: "$limit", Value: topLocations}},
	})
	if err != nil {
		return nil, fmt.Errorf("location stats: %w", err)
	}
	for _, l := range locs {
		st.TopLocations = append(st.TopLocations, LocationCount{Borough: l.ID.Borough, Neighborhood: l.ID.Neighborhood, Count: l.Count})
	}

	if st.TopBoroughs, err = m.valueCounts(ctx, mongo.Pipeline{
		withLocations,
		unwind,
		{{Key: "$group", Value: bson.M{"_id": "$housingInfo.selectedLocations.borough", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: topBoroughs}},
	}); err != nil {
		return nil, fmt.Errorf("borough stats: %w", err)
	}

	if st.TopOccupations, err = m.valueCounts(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"professionalInfo.occupation": bson.M{"$exists": true, "$ne": ""}}}},
		{{Key: "$group", Value: bson.M{"_id": "$professionalInfo.occupation", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: topOccupations}},
	}); err != nil {
		return nil, fmt.Errorf("occupation stats: %w", err)
	}

	// The top boundary is bumped so a score of exactly 100 lands in the last bucket.
	boundaries := bson.A{}
	for i, b := range CompletenessBoundaries {
		if i == len(CompletenessBoundaries)-1 {
			b++
		}
		boundaries = append(boundaries, b)
	}
	var buckets []struct {
		Min   any `bson:"_id"`
		Count int `bson:"count"`
	}
	err = m.aggregate(ctx, &buckets, mongo.Pipeline{
		{{Key: "$bucket", Value: bson.M{
			"groupBy":    "$metadata.profileCompleteness",
			"boundaries": boundaries,
			"default":    "unknown",
			"output":     bson.M{"count": bson.M{"$sum": 1}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("completeness stats: %w", err)
	}
	for _, b := range buckets {
		var lower int
		switch v := b.Min.(type) {
		case int32:
			lower = int(v)
		case int64:
			lower = int(v)
		case float64:
			lower = int(v)
		default:
			continue // "unknown": completeness was never computed
		}
		st.Completeness[bucketIndex(lower)].Count += b.Count
	}
	return st, nil
}

func (m *Mongo) aggregate(ctx context.Context, out any, pipeline mongo.Pipeline) error {
	cur, err := m.users.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (m *Mongo) valueCounts(ctx context.Context, pipeline mongo.Pipeline) ([]ValueCount, error) {
	var rows []struct {
		Value string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := m.aggregate(ctx, &rows, pipeline); err != nil {
		return nil, err
	}
	out := make([]ValueCount, len(rows))
	for i, r := range rows {
		out[i] = ValueCount{Value: r.Value, Count: r.Count}
	}
	return out, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
