package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/cartstore/internal/adapter/notifier"
	"github.com/rl1809/cartstore/internal/adapter/storage"
	"github.com/rl1809/cartstore/internal/core/domain"
	"github.com/rl1809/cartstore/internal/core/service"
)

const (
	itemID        = 4242
	initialStock  = 20
	totalRequests = 50
)

// countingNotifier counts rejected adds by kind.
type countingNotifier struct {
	mu     sync.Mutex
	byKind map[domain.NoticeKind]int
}

func (c *countingNotifier) Notify(ctx context.Context, n domain.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKind[n.Kind]++
}

func main() {
	ctx := context.Background()

	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	mysqlDSN := envOr("MYSQL_DSN", "root:root@tcp(localhost:3306)/cartstore?parseTime=true")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Initialize MySQL
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	// Seed inventory
	inventory := storage.NewMySQLAdapter(db)
	if err := inventory.SetStock(ctx, itemID, initialStock); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}
	err = inventory.UpsertProduct(ctx, domain.CatalogItem{
		ID:    itemID,
		Name:  "Stress Runner",
		Price: decimal.RequireFromString("179.90"),
	})
	if err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	// A fresh key per run so earlier runs do not pre-fill the cart
	key := "stress:cart:" + uuid.NewString()
	defer rdb.Del(ctx, key)

	counter := &countingNotifier{byKind: make(map[domain.NoticeKind]int)}
	cartService := service.NewCartService(ctx, inventory, storage.NewRedisAdapter(rdb),
		notifier.Fanout{counter},
		service.WithSnapshotKey(key),
	)

	// Spawn concurrent adds
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cartService.AddItem(ctx, itemID)
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	line, _ := cartService.Cart().Line(itemID)
	outOfStock := counter.byKind[domain.NoticeOutOfStock]
	otherFailures := counter.byKind[domain.NoticeNotFound] + counter.byKind[domain.NoticeUpstreamFailure]

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Cart Quantity:    %d\n", line.Quantity)
	fmt.Printf("Out of stock:     %d\n", outOfStock)
	fmt.Printf("Other failures:   %d\n", otherFailures)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if line.Quantity == initialStock && outOfStock == totalRequests-initialStock {
		fmt.Printf("PASS: quantity capped at %d, %d adds rejected\n", initialStock, outOfStock)
	} else {
		fmt.Printf("FAIL: expected quantity %d with %d rejections, got %d/%d\n",
			initialStock, totalRequests-initialStock, line.Quantity, outOfStock)
	}

	// Verify the persisted snapshot
	blob, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		fmt.Printf("FAIL: snapshot not readable: %v\n", err)
		return
	}
	saved, err := domain.UnmarshalSnapshot(blob)
	if err != nil {
		fmt.Printf("FAIL: snapshot not decodable: %v\n", err)
		return
	}
	if saved.Equal(cartService.Cart()) {
		fmt.Println("PASS: snapshot matches in-memory cart")
	} else {
		fmt.Println("FAIL: snapshot differs from in-memory cart")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
