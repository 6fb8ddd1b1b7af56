package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS stores values in a JetStream key-value bucket.
type NATS struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewNATS connects to url and opens bucket, creating it if missing.
func NewNATS(ctx context.Context, url, bucket string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("thumbmark"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "thumbmark client storage",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("opening bucket %s: %w", bucket, err)
	}

	return &NATS{nc: nc, kv: kv}, nil
}

func (n *NATS) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := n.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(entry.Value()), true, nil
}

func (n *NATS) Set(ctx context.Context, key, value string) error {
	_, err := n.kv.Put(ctx, key, []byte(value))
	return err
}

func (n *NATS) Close() error {
	n.nc.Close()
	return nil
}
