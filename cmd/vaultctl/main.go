package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"stakevault/cmd/internal/secret"
	"stakevault/crypto"
	"stakevault/services/vaultd"
	"stakevault/services/vaultd/audit"
)

const (
	hmacSecretEnv = "VAULTD_HMAC_SECRET"
	auditDSNEnv   = "VAULTD_AUDIT_DSN"
)

type cli struct {
	stdout      io.Writer
	profilePath string
	secrets     func(label, envVar string) (string, error)
}

func main() {
	c := &cli{
		stdout: os.Stdout,
		secrets: func(label, envVar string) (string, error) {
			return secret.NewSource(label, envVar).Get()
		},
	}
	if err := c.run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: vaultctl [-profile PATH] <command> [args]

Account:
  keygen                              generate an account key
  token -key HEX [-issuer S] [-ttl D] [-save]
                                      sign an API token for the key's address
Staking:
  deposit AMOUNT                      deposit principal
  unstake AMOUNT                      open an unstake request
  claim [-index N | -id ID]           claim vested principal (all requests by default)
  cancel [-index N | -id ID]          return unclaimed principal to active stake
  collect                             collect settled rewards
Rewards:
  rewards-deposit AMOUNT              fund the reward pool (admin)
  distribute                          fold pending rewards into the index
Admin:
  init [-asset ID] [-vesting SECONDS] initialize the vault
  pause | unpause
  vesting-period SECONDS
  permissions [-deposits BOOL] [-withdrawals BOOL]
  emergency-withdraw [AMOUNT]         0 or omitted drains the custody balance
  fund ACCOUNT AMOUNT                 credit a test balance (dev faucet)
Queries:
  vault | stake ACCOUNT | balance ACCOUNT
Operations:
  export-audit -out FILE [-dsn DSN] [-verify]`)
}

func (c *cli) run(args []string) error {
	global := flag.NewFlagSet("vaultctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	profilePath := global.String("profile", defaultProfilePath(), "path to the CLI profile")
	if err := global.Parse(args); err != nil {
		usage(c.stdout)
		return err
	}
	c.profilePath = *profilePath
	rest := global.Args()
	if len(rest) == 0 {
		usage(c.stdout)
		return flag.ErrHelp
	}
	cmd, cmdArgs := rest[0], rest[1:]

	switch cmd {
	case "keygen":
		return c.keygen()
	case "token":
		return c.issueToken(cmdArgs)
	case "export-audit":
		return c.exportAudit(cmdArgs)
	case "help", "-h", "--help":
		usage(c.stdout)
		return nil
	}

	prof, err := loadProfile(c.profilePath)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	api := newClient(prof.Endpoint, func() (string, error) {
		if prof.Token != "" {
			return prof.Token, nil
		}
		return c.secrets("API token", tokenEnv)
	})

	var out json.RawMessage
	switch cmd {
	case "deposit", "unstake", "rewards-deposit":
		amount, err := amountArg(cmdArgs, cmd, true)
		if err != nil {
			return err
		}
		path := map[string]string{
			"deposit":         "/v1/stake/deposit",
			"unstake":         "/v1/stake/unstake",
			"rewards-deposit": "/v1/rewards/deposit",
		}[cmd]
		out, err = api.post(path, map[string]uint64{"amount": amount})
		if err != nil {
			return err
		}
	case "claim", "cancel":
		body, err := selectorArgs(cmd, cmdArgs)
		if err != nil {
			return err
		}
		path := "/v1/stake/claim"
		if cmd == "cancel" {
			path = "/v1/stake/cancel"
		}
		if out, err = api.post(path, body); err != nil {
			return err
		}
	case "collect":
		out, err = api.post("/v1/rewards/collect", nil)
	case "distribute":
		out, err = api.post("/v1/rewards/distribute", nil)
	case "pause":
		out, err = api.post("/v1/admin/pause", nil)
	case "unpause":
		out, err = api.post("/v1/admin/unpause", nil)
	case "init":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		asset := fs.String("asset", "", "asset id (node default when empty)")
		vesting := fs.Uint64("vesting", 0, "vesting period in seconds (node default when 0)")
		if err := fs.Parse(cmdArgs); err != nil {
			return err
		}
		body := map[string]any{}
		if *asset != "" {
			body["asset_id"] = *asset
		}
		if *vesting > 0 {
			body["vesting_period"] = *vesting
		}
		out, err = api.post("/v1/vault/initialize", body)
	case "vesting-period":
		seconds, err := amountArg(cmdArgs, cmd, true)
		if err != nil {
			return err
		}
		out, err = api.post("/v1/admin/vesting-period", map[string]uint64{"seconds": seconds})
		if err != nil {
			return err
		}
	case "permissions":
		body, err := permissionArgs(cmdArgs)
		if err != nil {
			return err
		}
		out, err = api.post("/v1/admin/permissions", body)
		if err != nil {
			return err
		}
	case "emergency-withdraw":
		amount, err := amountArg(cmdArgs, cmd, false)
		if err != nil {
			return err
		}
		out, err = api.post("/v1/admin/emergency-withdraw", map[string]uint64{"amount": amount})
		if err != nil {
			return err
		}
	case "fund":
		if len(cmdArgs) != 2 {
			return errors.New("usage: vaultctl fund ACCOUNT AMOUNT")
		}
		account, err := crypto.DecodeAddress(cmdArgs[0])
		if err != nil {
			return fmt.Errorf("invalid account: %w", err)
		}
		amount, err := amountArg(cmdArgs[1:], cmd, true)
		if err != nil {
			return err
		}
		out, err = api.post("/v1/dev/fund", map[string]any{"account": account.String(), "amount": amount})
		if err != nil {
			return err
		}
	case "vault":
		out, err = api.get("/v1/vault")
	case "stake", "balance":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: vaultctl %s ACCOUNT", cmd)
		}
		account, err := crypto.DecodeAddress(cmdArgs[0])
		if err != nil {
			return fmt.Errorf("invalid account: %w", err)
		}
		prefix := "/v1/stakes/"
		if cmd == "balance" {
			prefix = "/v1/balances/"
		}
		if out, err = api.get(prefix + account.String()); err != nil {
			return err
		}
	default:
		usage(c.stdout)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}
	return c.printJSON(out)
}

func (c *cli) printJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = c.stdout.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(c.stdout)
	return err
}

func (c *cli) keygen() error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	out, err := json.Marshal(map[string]string{
		"address":    key.Address().String(),
		"privateKey": key.Hex(),
	})
	if err != nil {
		return err
	}
	return c.printJSON(out)
}

func (c *cli) issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	keyHex := fs.String("key", "", "hex private key of the caller")
	issuer := fs.String("issuer", "", "token issuer expected by vaultd")
	audience := fs.String("audience", "", "token audience expected by vaultd")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	save := fs.Bool("save", false, "store the token in the profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*keyHex) == "" {
		return errors.New("-key is required")
	}
	key, err := crypto.PrivateKeyFromHex(*keyHex)
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	hmacSecret, err := c.secrets("HMAC secret", hmacSecretEnv)
	if err != nil {
		return err
	}
	token, err := vaultd.IssueToken([]byte(hmacSecret), key.Address(), *issuer, *audience, *ttl, time.Now())
	if err != nil {
		return err
	}
	if *save {
		prof, err := loadProfile(c.profilePath)
		if err != nil {
			return err
		}
		prof.Token = token
		if err := saveProfile(c.profilePath, prof); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	}
	fmt.Fprintln(c.stdout, token)
	return nil
}

func (c *cli) exportAudit(args []string) error {
	fs := flag.NewFlagSet("export-audit", flag.ContinueOnError)
	dsn := fs.String("dsn", os.Getenv(auditDSNEnv), "audit journal postgres DSN")
	outPath := fs.String("out", "", "destination parquet file")
	verify := fs.Bool("verify", false, "verify the hash chain before exporting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*dsn) == "" {
		return fmt.Errorf("-dsn or %s is required", auditDSNEnv)
	}
	if strings.TrimSpace(*outPath) == "" {
		return errors.New("-out is required")
	}
	db, err := audit.Open(*dsn)
	if err != nil {
		return err
	}
	journal, err := audit.NewJournal(db, nil)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if *verify {
		if err := journal.Verify(ctx); err != nil {
			return err
		}
	}
	rows, err := journal.ExportParquet(ctx, *outPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "exported %d entries to %s\n", rows, *outPath)
	return nil
}

func amountArg(args []string, cmd string, required bool) (uint64, error) {
	if len(args) == 0 {
		if required {
			return 0, fmt.Errorf("usage: vaultctl %s AMOUNT", cmd)
		}
		return 0, nil
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("usage: vaultctl %s AMOUNT", cmd)
	}
	amount, err := strconv.ParseUint(strings.ReplaceAll(args[0], "_", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", args[0])
	}
	return amount, nil
}

func selectorArgs(cmd string, args []string) (map[string]any, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	index := fs.Int("index", -1, "request slot index")
	id := fs.String("id", "", "request id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	body := map[string]any{}
	if *index >= 0 && *id != "" {
		return nil, errors.New("-index and -id are mutually exclusive")
	}
	if *index >= 0 {
		body["index"] = *index
	}
	if *id != "" {
		body["id"] = *id
	}
	return body, nil
}

func permissionArgs(args []string) (map[string]bool, error) {
	fs := flag.NewFlagSet("permissions", flag.ContinueOnError)
	deposits := fs.String("deposits", "", "true or false; unchanged when omitted")
	withdrawals := fs.String("withdrawals", "", "true or false; unchanged when omitted")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	body := map[string]bool{}
	for key, raw := range map[string]string{"allow_deposits": *deposits, "allow_withdrawals": *withdrawals} {
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", key, raw)
		}
		body[key] = value
	}
	if len(body) == 0 {
		return nil, errors.New("set -deposits and/or -withdrawals")
	}
	return body, nil
}
