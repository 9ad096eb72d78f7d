package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RedisConfig holds the connection settings for the Redis cache backend.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
}

const (
	defaultRedisTimeout = 5 * time.Second
	redisKeyPrefix      = "pulse:"
)

// RedisClient speaks just enough RESP for the cache tiers, the session
// tracker and the rate limiter: AUTH, SELECT, PING, GET, SET PX, INCR,
// PEXPIRE, PTTL and DEL. It holds one connection with one command in
// flight at a time; a failed command drops the connection and the next
// command redials.
type RedisClient struct {
	cfg RedisConfig

	mu   sync.Mutex
	conn *respConn
}

// NewRedisClient dials the server immediately so a bad address or password
// fails at startup rather than on the first cache read.
func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}

	client := &RedisClient{cfg: cfg}
	client.mu.Lock()
	defer client.mu.Unlock()
	if err := client.connectLocked(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

// Close tears down the connection. Safe to call more than once.
func (c *RedisClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.close()
	c.conn = nil
	return err
}

// Ping drives the readiness probe.
func (c *RedisClient) Ping(ctx context.Context) error {
	status, err := c.execStatus(ctx, "PING")
	if err != nil {
		return err
	}
	if status != "PONG" {
		return fmt.Errorf("redis: unexpected ping reply %q", status)
	}
	return nil
}

// IncrementWithTTL bumps a counter key, starting the expiry window on the
// first hit. The returned duration is how long the current window has left.
func (c *RedisClient) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := c.redisKey(key)

	count, err := c.execInt(ctx, "INCR", k)
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if _, err := c.execInt(ctx, "PEXPIRE", k, pxArg(window)); err != nil {
			return 0, 0, err
		}
	}

	// PTTL is advisory; when it cannot be read, report a full window.
	remaining, err := c.execInt(ctx, "PTTL", k)
	if err != nil || remaining < 0 {
		return count, window, nil
	}
	return count, time.Duration(remaining) * time.Millisecond, nil
}

// Set writes a value with millisecond expiry. Non-positive TTLs store the
// value without expiry, matching the database fallback.
func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{"SET", c.redisKey(key), string(value)}
	if ttl > 0 {
		args = append(args, "PX", pxArg(ttl))
	}
	_, err := c.execStatus(ctx, args...)
	return err
}

// Get reports the cached value and whether the key was present.
func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	reply, err := c.exec(ctx, "GET", c.redisKey(key))
	if err != nil {
		return nil, false, err
	}
	switch v := reply.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("redis: GET returned %T", v)
	}
}

// Delete removes keys; missing keys are not an error.
func (c *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]string, 0, len(keys)+1)
	args = append(args, "DEL")
	for _, key := range keys {
		args = append(args, c.redisKey(key))
	}
	_, err := c.exec(ctx, args...)
	return err
}

// redisKey namespaces keys so one server can back several deployments.
// Runs of colons collapse so callers joining empty segments still produce
// scannable keys.
func (c *RedisClient) redisKey(key string) string {
	k := collapseColons(key)
	if strings.HasPrefix(k, redisKeyPrefix) {
		return k
	}
	return collapseColons(redisKeyPrefix + k)
}

func (c *RedisClient) execStatus(ctx context.Context, args ...string) (string, error) {
	reply, err := c.exec(ctx, args...)
	if err != nil {
		return "", err
	}
	status, ok := reply.(string)
	if !ok {
		return "", fmt.Errorf("redis: %s returned %T, want status", args[0], reply)
	}
	return status, nil
}

func (c *RedisClient) execInt(ctx context.Context, args ...string) (int64, error) {
	reply, err := c.exec(ctx, args...)
	if err != nil {
		return 0, err
	}
	switch v := reply.(type) {
	case int64:
		return v, nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	default:
		return 0, fmt.Errorf("redis: %s returned %T, want integer", args[0], reply)
	}
}

func (c *RedisClient) exec(ctx context.Context, args ...string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.cfg.Timeout)
	}
	reply, err := c.conn.roundTrip(deadline, args)
	if err != nil {
		// The stream may be out of sync; redial on the next command.
		_ = c.conn.close()
		c.conn = nil
		return nil, err
	}
	return reply, nil
}

func (c *RedisClient) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	conn, err := dialRedis(dialCtx, c.cfg)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// respConn is a single Redis connection with a buffered reply reader.
type respConn struct {
	netConn net.Conn
	replies *bufio.Reader
}

// dialRedis opens the TCP (or TLS) stream and completes the AUTH and
// SELECT handshake before the connection is handed to callers.
func dialRedis(ctx context.Context, cfg RedisConfig) (*respConn, error) {
	var (
		netConn net.Conn
		err     error
	)
	if cfg.TLS {
		netConn, err = (&tls.Dialer{NetDialer: &net.Dialer{}}).DialContext(ctx, "tcp", cfg.Address)
	} else {
		netConn, err = (&net.Dialer{}).DialContext(ctx, "tcp", cfg.Address)
	}
	if err != nil {
		return nil, err
	}

	conn := &respConn{netConn: netConn, replies: bufio.NewReader(netConn)}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultRedisTimeout)
	}
	if err := netConn.SetDeadline(deadline); err != nil {
		_ = conn.close()
		return nil, err
	}

	if cfg.Password != "" || cfg.Username != "" {
		auth := []string{"AUTH"}
		if cfg.Username != "" {
			auth = append(auth, cfg.Username, cfg.Password)
		} else {
			auth = append(auth, cfg.Password)
		}
		if err := conn.handshake(auth); err != nil {
			_ = conn.close()
			return nil, fmt.Errorf("redis: auth: %w", err)
		}
	}
	if cfg.DB > 0 {
		if err := conn.handshake([]string{"SELECT", strconv.Itoa(cfg.DB)}); err != nil {
			_ = conn.close()
			return nil, fmt.Errorf("redis: select db %d: %w", cfg.DB, err)
		}
	}

	// Per-command deadlines take over from here.
	if err := netConn.SetDeadline(time.Time{}); err != nil {
		_ = conn.close()
		return nil, err
	}
	return conn, nil
}

// handshake sends a setup command and insists on +OK.
func (c *respConn) handshake(args []string) error {
	if err := c.send(args); err != nil {
		return err
	}
	reply, err := c.receive()
	if err != nil {
		return err
	}
	if status, ok := reply.(string); !ok || !strings.EqualFold(status, "OK") {
		return fmt.Errorf("server replied %v", reply)
	}
	return nil
}

func (c *respConn) roundTrip(deadline time.Time, args []string) (any, error) {
	if err := c.netConn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if err := c.send(args); err != nil {
		return nil, err
	}
	return c.receive()
}

func (c *respConn) close() error {
	return c.netConn.Close()
}

// send writes one command as a RESP array of bulk strings.
func (c *respConn) send(args []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(arg), arg)
	}
	_, err := io.WriteString(c.netConn, b.String())
	return err
}

// receive parses one reply. Status replies come back as string, integers
// as int64, bulk strings as []byte, nil bulks as untyped nil and error
// replies as Go errors.
func (c *respConn) receive() (any, error) {
	kind, err := c.replies.ReadByte()
	if err != nil {
		return nil, err
	}
	line, err := c.line()
	if err != nil {
		return nil, err
	}

	switch kind {
	case '+':
		return line, nil
	case '-':
		return nil, errors.New(line)
	case ':':
		return strconv.ParseInt(line, 10, 64)
	case '$':
		return c.bulk(line)
	case '*':
		return c.array(line)
	default:
		return nil, fmt.Errorf("redis: unknown reply type %q", kind)
	}
}

func (c *respConn) bulk(header string) (any, error) {
	size, err := strconv.Atoi(header)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, nil
	}
	payload := make([]byte, size+2)
	if _, err := io.ReadFull(c.replies, payload); err != nil {
		return nil, err
	}
	if payload[size] != '\r' || payload[size+1] != '\n' {
		return nil, errors.New("redis: bulk reply missing terminator")
	}
	return payload[:size], nil
}

func (c *respConn) array(header string) (any, error) {
	size, err := strconv.Atoi(header)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, nil
	}
	items := make([]any, size)
	for i := range items {
		item, err := c.receive()
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}

func (c *respConn) line() (string, error) {
	line, err := c.replies.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func collapseColons(key string) string {
	if !strings.Contains(key, "::") {
		return key
	}
	var b strings.Builder
	b.Grow(len(key))
	var prev byte
	for i := 0; i < len(key); i++ {
		if key[i] == ':' && prev == ':' {
			continue
		}
		prev = key[i]
		b.WriteByte(key[i])
	}
	return b.String()
}

func pxArg(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}
