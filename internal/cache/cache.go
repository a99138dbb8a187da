// Package cache guarda o texto convertido indexado pelo hash do conteúdo enviado.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL é a validade padrão de uma entrada.
const DefaultTTL = time.Hour

// Entry é o resultado armazenado.
type Entry struct {
	Text  string `json:"text"`
	Title string `json:"title,omitempty"`
}

// Cache é implementado pelos backends de cache de conversão.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Key monta a chave a partir do motor, do sha256 do conteúdo e da extensão normalizada.
// Trocar de motor invalida os resultados anteriores.
func Key(engineName string, sum []byte, ext string) string {
	return fmt.Sprintf("conv:%s:%s:%s", engineName, hex.EncodeToString(sum), strings.ToLower(strings.TrimPrefix(ext, ".")))
}

// RedisCache usa go-redis como backend.
type RedisCache struct {
	client *redis.Client
}

// NewRedis cria o cache a partir de uma URL redis://.
func NewRedis(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse: %w", err)
	}
	return NewRedisFromClient(redis.NewClient(opts)), nil
}

// NewRedisFromClient reaproveita um cliente já configurado.
func NewRedisFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("cache: entrada corrompida em %s: %w", key, err)
	}
	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close encerra o cliente redis.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
