package stampede_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/veartutop/stampede"
)

func ExampleNew() {
	// Shared store, use NewRedis for a multi-process caller population.
	store := stampede.NewMemory()
	defer store.Close()

	c, err := stampede.New(stampede.Config{
		Name:     "alerts",
		CacheKey: "api:v1:pattern_list",
		SoftTTL:  30 * time.Second,
		LockTTL:  10 * time.Second,
		HardTTL:  time.Minute,
		Store:    store,
	}, func(ctx context.Context) (string, error) {
		// Talk to the slow upstream here, the call is bounded by FetchTimeout
		// and runs in at most one caller at a time.
		return "NNNNNNAANNNAP", nil
	})
	if err != nil {
		log.Fatal(err)
	}

	val, err := c.Read(context.TODO())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(val)

	// Output:
	// NNNNNNAANNNAP
}
