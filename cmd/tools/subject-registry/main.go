// cmd/tools/subject-registry/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"notification-workers/internal/common/consumer"
	"notification-workers/internal/common/validation"
	"notification-workers/pkg/registry"
)

var registryPath string

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	publishCmd := flag.NewFlagSet("publish", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{validateCmd, listCmd, checkCmd, publishCmd} {
		fs.StringVar(&registryPath, "path", "", "Path to registry file (default: the embedded registry)")
	}

	// Check/publish command flags
	subjectCheck := checkCmd.String("subject", "", "Subject whose schema the payload must satisfy")
	fileCheck := checkCmd.String("file", "", "JSON payload file (object or array)")
	subjectPub := publishCmd.String("subject", "", "Subject to publish on")
	filePub := publishCmd.String("file", "", "JSON payload file (object or array)")
	redisAddr := publishCmd.String("redis", "localhost:6379", "Redis address")
	maxLen := publishCmd.Int64("maxlen", 100000, "Approximate stream length cap")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listSubjects(); err != nil {
			fmt.Printf("Error listing subjects: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkCmd.Parse(os.Args[2:])
		if *subjectCheck == "" || *fileCheck == "" {
			fmt.Println("Error: subject and file are required for check.")
			checkCmd.Usage()
			os.Exit(1)
		}
		if err := checkPayload(*subjectCheck, *fileCheck); err != nil {
			fmt.Printf("Payload rejected: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Payload accepted for %s\n", *subjectCheck)

	case "publish":
		publishCmd.Parse(os.Args[2:])
		if *subjectPub == "" || *filePub == "" {
			fmt.Println("Error: subject and file are required for publish.")
			publishCmd.Usage()
			os.Exit(1)
		}
		if err := publish(*redisAddr, *maxLen, *subjectPub, *filePub); err != nil {
			fmt.Printf("Error publishing: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Published to %s\n", *subjectPub)

	case "help":
		fallthrough
	default:
		help()
	}
}

func loadRegistry() (*registry.SubjectRegistry, error) {
	if registryPath == "" {
		return registry.Default(), nil
	}
	return registry.LoadRegistry(registryPath)
}

func validateRegistry() error {
	reg, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if len(reg.Streams) == 0 {
		return fmt.Errorf("registry contains no streams")
	}

	count := 0
	for _, st := range reg.Streams {
		if st.Name == "" {
			return fmt.Errorf("stream missing required field: name")
		}
		if st.Durable == "" {
			return fmt.Errorf("stream %s missing required field: durable", st.Name)
		}
		if len(st.Subjects) == 0 {
			return fmt.Errorf("stream %s declares no subjects", st.Name)
		}
		for _, sub := range st.Subjects {
			if sub.Description == "" {
				return fmt.Errorf("subject %s missing required field: description", sub.Name)
			}
			if _, err := validation.Compile(sub.Payload); err != nil {
				return fmt.Errorf("subject %s: %w", sub.Name, err)
			}
			count++
		}
	}

	fmt.Printf("Registry validation passed. Found %d streams, %d subjects.\n", len(reg.Streams), count)
	return nil
}

func listSubjects() error {
	reg, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	for _, st := range reg.Streams {
		mode := "queue"
		if st.Broadcast {
			mode = "broadcast"
		}
		fmt.Printf("%s (durable %s, %s)\n", st.Name, st.Durable, mode)

		names := reg.Subjects(st.Name)
		sort.Strings(names)
		for _, name := range names {
			sub, _ := reg.Subject(name)
			fmt.Printf("  %-55s %s\n", name, sub.Description)
		}
	}
	return nil
}

// checkPayload validates every item of the payload file against the subject schema.
func checkPayload(subject, path string) error {
	reg, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	sub, ok := reg.Subject(subject)
	if !ok {
		return fmt.Errorf("unknown subject %s", subject)
	}
	schema, err := validation.Compile(sub.Payload)
	if err != nil {
		return err
	}

	items, err := readItems(path)
	if err != nil {
		return err
	}
	for i, raw := range items {
		res, err := schema.Validate(raw)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if !res.Valid {
			return fmt.Errorf("item %d: %s", i, res.Error())
		}
	}
	return nil
}

func publish(addr string, maxLen int64, subject, path string) error {
	if err := checkPayload(subject, path); err != nil {
		return err
	}
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return consumer.NewRedisPublisher(rdb, reg, maxLen).Publish(ctx, subject, json.RawMessage(data))
}

func readItems(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var one json.RawMessage
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("payload is not JSON: %w", err)
	}
	return []json.RawMessage{one}, nil
}

func help() {
	usage(os.Stdout)
}

func usage(w io.Writer) {
	fmt.Fprint(w, `
Usage: subject-registry <command> [flags]

Commands:
  validate  Check every stream and compile every payload schema
  list      Print streams and their subjects
  check     Validate a payload file against a subject's schema
  publish   Validate a payload file and XADD it to the subject's stream
  help      Show this help message

Examples:
  subject-registry validate -path pkg/registry/subjects.json
  subject-registry check -subject notifications.email.invite -file invite.json
  subject-registry publish -subject notifications.receiver.transaction.created -file created.json -redis localhost:6379

Use 'subject-registry <command> -h' for more information about a command.
`)
}
