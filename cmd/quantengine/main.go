// Command quantengine loads a §6.2 YAML configuration, evaluates one key,
// and prints the result — a minimal CLI front end over pkg/compute,
// grounded on awsqed-config-formatter/main.go's flag-based shape:
// `quantengine -config run.yaml -get energy`.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"quantengine/pkg/cache"
	"quantengine/pkg/compute"
	"quantengine/pkg/config"
	"quantengine/pkg/graph"
	"quantengine/pkg/key"
	"quantengine/pkg/unit"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (required)")
	getKey := flag.String("get", "", "key to evaluate and print (uses the config's default key if omitted)")
	describeKey := flag.String("describe", "", "print the task tree rooted at this key instead of evaluating it")
	out := flag.String("out", "", "write the result to this CSV file instead of stdout")
	redisAddr := flag.String("cache-redis-addr", "", "Redis address for the load_file cache (disabled if empty)")

	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config flag is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	reg := unit.NewRegistry()
	opts := []compute.Option{compute.WithUnitRegistry(reg)}
	if *redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		opts = append(opts, compute.WithCache(cache.NewRedisLoader(client, reg, "")))
	}

	c := compute.NewComputer(opts...)
	if err := c.LoadConfig(cfg); err != nil {
		log.Fatalf("materializing config: %v", err)
	}

	if *describeKey != "" {
		k, err := key.Parse(*describeKey)
		if err != nil {
			log.Fatalf("parsing -describe key: %v", err)
		}
		fmt.Print(c.Describe(k))
		return
	}

	var target key.Key
	if *getKey != "" {
		target, err = key.Parse(*getKey)
		if err != nil {
			log.Fatalf("parsing -get key: %v", err)
		}
	}

	v, err := c.Get(context.Background(), target)
	if err != nil {
		log.Fatalf("evaluating key: %v", err)
	}
	q, ok := v.AsQuantity()
	if !ok {
		fmt.Println(v.String())
		return
	}

	if *out != "" {
		// Route through the write_report operator rather than re-implementing
		// CSV serialization here: stash the already-computed value under a
		// throwaway key and call write_report(result, path) the same way a
		// "general" config section would.
		resultKey := key.New("__cli_result", target.Dims(), "")
		if _, err := c.AddLiteral(resultKey, v, compute.AddOptions{Strict: false}); err != nil {
			log.Fatalf("staging result: %v", err)
		}
		reportKey := key.New("__cli_report", nil, "")
		if _, err := c.AddCall(reportKey, "write_report", []key.Key{resultKey}, []graph.Value{graph.StringValue(*out)}, compute.AddOptions{Strict: false}); err != nil {
			log.Fatalf("preparing report: %v", err)
		}
		if _, err := c.Get(context.Background(), reportKey); err != nil {
			log.Fatalf("writing %s: %v", *out, err)
		}
		fmt.Printf("wrote %s\n", *out)
		return
	}

	for _, row := range q.ToSeries() {
		fmt.Printf("%v = %g %s\n", row.Coords, row.Value, q.Units().String())
	}
}
