package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap/zapcore"

	"github.com/maticvigil/vigil-go/internal/contract"
	"github.com/maticvigil/vigil-go/internal/core"
	"github.com/maticvigil/vigil-go/internal/logger"
	"github.com/maticvigil/vigil-go/internal/settings"
	"github.com/maticvigil/vigil-go/internal/signer"
	"github.com/maticvigil/vigil-go/internal/ws"
)

const usage = `usage: vigil [flags] <command> [command flags]

commands:
  login                          log in and print the account
  signup -code CODE              sign up with an invite code
  contracts                      list deployed/verified contracts
  deploy -file F -name N [-inputs JSON]
  call -contract A -method M [args...]
  transact -contract A -method M [-params JSON] [-abi F]
  hooks -contract A list | activate ID | deactivate ID | events -url U [-events E,...] | monitor -url U
  listen [-contract A]           print websocket payloads until interrupted
`

func main() {
	var dir string
	var verbose bool
	var privateKey string
	var ledger bool
	var index int
	var mnemonic string
	var hdPath string
	flag.StringVar(&dir, "dir", "", "Settings directory (default ~/.maticvigil)")
	flag.BoolVar(&verbose, "verbose", false, "Log request and response details")
	flag.StringVar(&privateKey, "private-key", "", "Private key to use for signing (overrides settings)")
	flag.BoolVar(&ledger, "ledger", false, "Use ledger device for signing")
	flag.IntVar(&index, "index", 0, "Index of the ledger to use")
	flag.StringVar(&mnemonic, "mnemonic", "", "Mnemonic to use for signing")
	flag.StringVar(&hdPath, "hd-paths", signer.DefaultHDPath, "Hierarchical deterministic derivation path for mnemonic or ledger")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	lggr, err := logger.New(level)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() { _ = lggr.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := core.Options{Dir: dir, Logger: lggr}
	if privateKey != "" || mnemonic != "" || ledger {
		opts.Signer = &signer.Options{
			PrivateKey: privateKey,
			Mnemonic:   mnemonic,
			HDPath:     hdPath,
			Ledger:     ledger,
			Index:      index,
		}
	}
	client, err := core.New(ctx, opts)
	if err != nil {
		log.Fatalf("Error starting session: %v", err)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := run(ctx, client, lggr, cmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *core.Client, lggr logger.Logger, cmd string, args []string) error {
	switch cmd {
	case "login":
		acct, err := client.Login(ctx)
		if err != nil {
			return err
		}
		return printJSON(acct)
	case "signup":
		fs := flag.NewFlagSet("signup", flag.ExitOnError)
		code := fs.String("code", "", "Invite code")
		_ = fs.Parse(args)
		env, err := client.Signup(ctx, *code)
		if err != nil {
			return err
		}
		return printJSON(env)
	case "contracts":
		return printJSON(client.Contracts())
	case "deploy":
		return runDeploy(ctx, client, args)
	case "call", "transact":
		return runInvoke(ctx, client, cmd, args)
	case "hooks":
		return runHooks(ctx, client, args)
	case "listen":
		return runListen(ctx, client, lggr, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runDeploy(ctx context.Context, client *core.Client, args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	file := fs.String("file", "", "Solidity source file")
	name := fs.String("name", "", "Contract to deploy from the file")
	inputs := fs.String("inputs", "{}", "Constructor inputs as a JSON object")
	_ = fs.Parse(args)

	if *file == "" || *name == "" {
		return fmt.Errorf("deploy requires -file and -name")
	}
	params, err := decodeObject(*inputs)
	if err != nil {
		return fmt.Errorf("error parsing -inputs: %w", err)
	}
	res, err := client.Deploy(ctx, *file, *name, params)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runInvoke(ctx context.Context, client *core.Client, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	address := fs.String("contract", "", "Contract address")
	method := fs.String("method", "", "Contract method")
	params := fs.String("params", "{}", "Named arguments as a JSON object (transact)")
	abiFile := fs.String("abi", "", "ABI file to validate arguments against before sending")
	_ = fs.Parse(args)

	if *address == "" || *method == "" {
		return fmt.Errorf("%s requires -contract and -method", cmd)
	}
	var opts []contract.Option
	if *abiFile != "" {
		data, err := os.ReadFile(*abiFile)
		if err != nil {
			return fmt.Errorf("error reading ABI: %w", err)
		}
		opts = append(opts, contract.WithABIJSON(data))
	}
	c, err := client.GenerateContractSDK(ctx, *address, *address, opts...)
	if err != nil {
		return err
	}

	if cmd == "call" {
		positional := make([]any, 0, fs.NArg())
		for _, a := range fs.Args() {
			positional = append(positional, a)
		}
		env, err := c.Call(ctx, *method, positional...)
		if err != nil {
			return err
		}
		return printJSON(env)
	}

	named, err := decodeObject(*params)
	if err != nil {
		return fmt.Errorf("error parsing -params: %w", err)
	}
	txs, err := c.Transact(ctx, *method, named)
	if err != nil {
		return err
	}
	return printJSON(txs)
}

func runHooks(ctx context.Context, client *core.Client, args []string) error {
	fs := flag.NewFlagSet("hooks", flag.ExitOnError)
	address := fs.String("contract", "", "Contract address")
	_ = fs.Parse(args)
	if *address == "" || fs.NArg() == 0 {
		return fmt.Errorf("hooks requires -contract and an action")
	}
	c, err := client.GenerateContractSDK(ctx, *address, *address)
	if err != nil {
		return err
	}

	action, rest := fs.Arg(0), fs.Args()[1:]
	switch action {
	case "list":
		list, err := c.Integrations(ctx)
		if err != nil {
			return err
		}
		return printJSON(list)
	case "activate", "deactivate":
		if len(rest) != 1 {
			return fmt.Errorf("%s requires a hook id", action)
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid hook id %q: %w", rest[0], err)
		}
		if action == "activate" {
			return c.ActivateIntegration(ctx, id)
		}
		return c.DeactivateIntegration(ctx, id)
	case "events", "monitor":
		afs := flag.NewFlagSet(action, flag.ExitOnError)
		url := afs.String("url", "", "Callback URL")
		events := afs.String("events", "*", "Comma separated event names, * for all")
		channel := afs.String("channel", contract.ChannelWeb, "Integration channel")
		_ = afs.Parse(rest)

		var id int64
		if action == "events" {
			id, err = c.AddEventIntegration(ctx, strings.Split(*events, ","), *url, *channel)
		} else {
			id, err = c.AddContractMonitoringIntegration(ctx, *url, *channel)
		}
		if err != nil {
			return err
		}
		return printJSON(map[string]int64{"id": id})
	default:
		return fmt.Errorf("unknown hooks action %q", action)
	}
}

func runListen(ctx context.Context, client *core.Client, lggr logger.Logger, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	address := fs.String("contract", "", "Only print payloads for this contract")
	_ = fs.Parse(args)

	acct := client.Account()
	if acct == nil {
		return core.ErrNoAccount
	}
	endpoint := client.Settings().WSEndpoint
	if endpoint == "" {
		defaults, err := settings.Defaults()
		if err != nil {
			return err
		}
		endpoint = defaults.WSEndpoint
	}

	enc := json.NewEncoder(os.Stdout)
	sub := ws.NewSubscriber(endpoint, acct.ReadKey, func(p ws.Payload) {
		if *address != "" && !strings.EqualFold(p.Contract, *address) {
			return
		}
		_ = enc.Encode(p.Raw)
	}, lggr, ws.DefaultConfig)
	return sub.Run(ctx)
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
