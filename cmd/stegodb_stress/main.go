package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stegodb/pkg/config"
	"stegodb/pkg/database"
	"stegodb/pkg/logger"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"
)

var MAX_DELAY int64 = 10

// Listens for SIGINT or SIGTERM and closes the database.
func setupCloseHandler(db *database.Database) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		db.Close()
		os.Exit(0)
	}()
}

// Get delay jitter.
func jitter() time.Duration {
	return time.Duration(rand.Int63n(MAX_DELAY)+1) * time.Millisecond
}

// scramble spreads sequential counters over the key space so workers hit
// unpredictable leaves while staying deterministic run to run.
func scramble(worker int, i int64) int64 {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(i))
	h := murmur3.Sum64WithSeed(b, uint32(worker))
	return int64(h >> 1) // keep keys non-negative
}

// Parse workload: one command per line.
func parseWorkload(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var workload []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		workload = append(workload, scanner.Text())
	}
	return workload, scanner.Err()
}

// applyCommand dispatches one workload line against the database.
func applyCommand(db *database.Database, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "insert":
		return database.HandleInsert(db, line)
	case "delete":
		return database.HandleDelete(db, line)
	case "find":
		_, err := database.HandleFind(db, line)
		return err
	default:
		return fmt.Errorf("unknown workload command %q", fields[0])
	}
}

// runWorkloadFile fans the workload's lines out over n workers round-robin.
func runWorkloadFile(db *database.Database, workload []string, n int) error {
	var eg errgroup.Group
	for w := 0; w < n; w++ {
		worker := w
		eg.Go(func() error {
			for i := worker; i < len(workload); i += n {
				time.Sleep(jitter())
				if err := applyCommand(db, workload[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

// runGenerated has each worker insert, read back, and partially delete a
// disjoint scrambled key range.
func runGenerated(index *database.Index, n int, opsPerWorker int64) error {
	var eg errgroup.Group
	for w := 0; w < n; w++ {
		worker := w
		eg.Go(func() error {
			for i := int64(0); i < opsPerWorker; i++ {
				key := scramble(worker, i)
				if err := index.Insert(key, i); err != nil {
					return fmt.Errorf("worker %d: %w", worker, err)
				}
			}
			for i := int64(0); i < opsPerWorker; i++ {
				key := scramble(worker, i)
				if _, err := index.Find(key); err != nil {
					return fmt.Errorf("worker %d: %w", worker, err)
				}
			}
			for i := int64(0); i < opsPerWorker; i += 2 {
				key := scramble(worker, i)
				if err := index.Delete(key); err != nil {
					return fmt.Errorf("worker %d: %w", worker, err)
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

// Drive a concurrent workload against a single index.
func main() {
	var workloadFlag = flag.String("workload", "", "workload file (optional; generated workload if omitted)")
	var nFlag = flag.Int("n", 1, "number of workers to run (default: 1)")
	var opsFlag = flag.Int64("ops", 1000, "operations per worker for the generated workload")
	var verifyFlag = flag.Bool("verify", false, "enable to verify index invariants at the end of the workload")
	var dataFlag = flag.String("data", "data", "data directory")
	flag.Parse()

	cfg := config.Default()
	cfg.DataDir = *dataFlag
	logger.SetLevel(cfg.LogLevel)

	db, err := database.Open(cfg.DataDir, cfg)
	if err != nil {
		panic(err)
	}
	defer db.Close()
	setupCloseHandler(db)

	// Clean up old db resources.
	os.Remove(cfg.DataDir + "/t")
	index, err := db.CreateIndex("t")
	if err != nil {
		fmt.Println(err)
		return
	}

	start := time.Now()
	if *workloadFlag != "" {
		workload, err := parseWorkload(*workloadFlag)
		if err != nil {
			fmt.Println(err)
			return
		}
		err = runWorkloadFile(db, workload, *nFlag)
		if err != nil {
			fmt.Println(err)
			return
		}
	} else {
		if err := runGenerated(index, *nFlag, *opsFlag); err != nil {
			fmt.Println(err)
			return
		}
	}
	fmt.Printf("workload finished in %v\n", time.Since(start))

	if *verifyFlag {
		if err := index.Verify(); err != nil {
			fmt.Println("VERIFICATION FAILED:", err)
			os.Exit(1)
		}
		entries, err := index.Select()
		if err != nil {
			fmt.Println("VERIFICATION FAILED:", err)
			os.Exit(1)
		}
		fmt.Printf("verification passed; index holds %d entries\n", len(entries))
	}
}
