package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/onyxia-store/onyxia/config"
)

// MongoOptions configures the MongoDB log sink.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Level      slog.Level
	// Retention drives a TTL index on "time". Zero keeps records forever.
	Retention  time.Duration
	BatchSize  int
	FlushEvery time.Duration
	QueueSize  int
}

// MongoOptionsFromConfig reads LOG_MONGO_*. ok is false when no URI is set.
func MongoOptionsFromConfig() (opts MongoOptions, ok bool) {
	uri := config.Get("LOG_MONGO_URI", "")
	if uri == "" {
		return MongoOptions{}, false
	}
	return MongoOptions{
		URI:        uri,
		Database:   config.Get("LOG_MONGO_DB", "onyxia"),
		Collection: config.Get("LOG_MONGO_COLLECTION", "logs"),
		Level:      slog.LevelInfo,
		Retention:  config.Duration("LOG_MONGO_RETENTION", 30*24*time.Hour),
	}, true
}

func (o *MongoOptions) defaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 2 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 4096
	}
}

// LogDocument is one stored record. Grouped attributes are flattened to
// dotted keys ("order.id").
type LogDocument struct {
	Time      time.Time `bson:"time"`
	Level     string    `bson:"level"`
	Msg       string    `bson:"msg"`
	RequestID string    `bson:"request_id,omitempty"`
	Attrs     bson.M    `bson:"attrs,omitempty"`
}

// MongoHandler is an slog.Handler that queues records for a background
// writer. Handle never blocks; records are dropped when the queue is full.
type MongoHandler struct {
	sink   *mongoSink
	level  slog.Level
	attrs  []slog.Attr
	prefix string
}

type mongoSink struct {
	col     *mongo.Collection
	client  *mongo.Client
	opts    MongoOptions
	queue   chan LogDocument
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
	wg      sync.WaitGroup
}

// NewMongoHandler connects, pings and ensures the indexes. Close it on shutdown.
func NewMongoHandler(opts MongoOptions) (*MongoHandler, error) {
	opts.defaults()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(10))
	if err != nil {
		return nil, fmt.Errorf("logger/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("logger/mongo: ping: %w", err)
	}

	col := client.Database(opts.Database).Collection(opts.Collection)
	if _, err := col.Indexes().CreateMany(ctx, indexModels(opts.Retention)); err != nil {
		Warn("logger/mongo: index setup failed", "error", err)
	}

	s := &mongoSink{
		col:    col,
		client: client,
		opts:   opts,
		queue:  make(chan LogDocument, opts.QueueSize),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.drain()

	return &MongoHandler{sink: s, level: opts.Level}, nil
}

func indexModels(retention time.Duration) []mongo.IndexModel {
	timeIdx := options.Index()
	if retention > 0 {
		timeIdx.SetExpireAfterSeconds(int32(retention / time.Second))
	}
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "time", Value: 1}}, Options: timeIdx},
		{Keys: bson.D{{Key: "request_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
}

func (h *MongoHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *MongoHandler) Handle(_ context.Context, r slog.Record) error {
	doc := toDocument(r, h.attrs, h.prefix)
	select {
	case h.sink.queue <- doc:
	default:
		h.sink.dropped.Add(1)
	}
	return nil
}

func (h *MongoHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scoped := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	scoped = append(scoped, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		scoped = append(scoped, a)
	}
	return &MongoHandler{sink: h.sink, level: h.level, attrs: scoped, prefix: h.prefix}
}

func (h *MongoHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &MongoHandler{sink: h.sink, level: h.level, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// Dropped counts records lost to a full queue.
func (h *MongoHandler) Dropped() int64 { return h.sink.dropped.Load() }

// toDocument flattens a record. Pre-bound attrs already carry their prefix.
func toDocument(r slog.Record, bound []slog.Attr, prefix string) LogDocument {
	doc := LogDocument{Time: r.Time, Level: r.Level.String(), Msg: r.Message, Attrs: bson.M{}}

	var add func(key string, v slog.Value)
	add = func(key string, v slog.Value) {
		v = v.Resolve()
		switch {
		case key == "request_id":
			doc.RequestID = v.String()
		case v.Kind() == slog.KindGroup:
			for _, a := range v.Group() {
				add(key+"."+a.Key, a.Value)
			}
		case v.Kind() == slog.KindAny:
			if err, ok := v.Any().(error); ok {
				doc.Attrs[key] = err.Error()
			} else {
				doc.Attrs[key] = v.Any()
			}
		default:
			doc.Attrs[key] = v.Any()
		}
	}

	for _, a := range bound {
		add(a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(prefix+a.Key, a.Value)
		return true
	})
	if len(doc.Attrs) == 0 {
		doc.Attrs = nil
	}
	return doc
}

func (s *mongoSink) drain() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.FlushEvery)
	defer ticker.Stop()

	batch := make([]interface{}, 0, s.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// unordered so one bad document does not drop the rest
		_, _ = s.col.InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
		batch = batch[:0]
	}

	for {
		select {
		case doc := <-s.queue:
			batch = append(batch, doc)
			if len(batch) >= s.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case doc := <-s.queue:
					batch = append(batch, doc)
					if len(batch) >= s.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close flushes what is queued and disconnects. Safe to call more than once.
func (h *MongoHandler) Close() {
	h.sink.once.Do(func() {
		close(h.sink.done)
		h.sink.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.sink.client.Disconnect(ctx)
	})
}
