package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ruteri/tee-secure-signer/cmd/flags"
	"github.com/ruteri/tee-secure-signer/handlers"
	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/ruteri/tee-secure-signer/messenger"
	"github.com/urfave/cli/v2"
)

var hostFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "url",
		Value: "ws://127.0.0.1:8080/frame",
		Usage: "signer frame endpoint",
	},
	&cli.StringFlag{
		Name:  "origin",
		Value: "http://localhost",
		Usage: "origin presented to the signer",
	},
	&cli.StringFlag{
		Name:     "jwt",
		Usage:    "tenant JWT forwarded to the trust service",
		EnvVars:  []string{"SIGNER_JWT"},
		Required: true,
	},
	&cli.StringFlag{
		Name:     "api-key",
		Usage:    "tenant API key forwarded to the trust service",
		EnvVars:  []string{"SIGNER_API_KEY"},
		Required: true,
	},
	&cli.StringFlag{
		Name:  "key-type",
		Value: string(interfaces.KeyTypeEd25519),
		Usage: "ed25519 or secp256k1",
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Value: messenger.DefaultCallTimeout,
		Usage: "per request timeout",
	},
}

func main() {
	app := &cli.App{
		Name:  "signer-host",
		Usage: "Issue requests to a secure signer over its frame endpoint",
		Flags: append(append([]cli.Flag{}, flags.CommonFlags...), hostFlags...),
		Commands: []*cli.Command{
			{
				Name:      "create-signer",
				Usage:     "begin onboarding",
				ArgsUsage: "<auth-id>",
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return errors.New("expected <auth-id>")
					}
					return run(cCtx, handlers.OpCreateSigner, interfaces.CreateSignerParams{
						AuthID:  cCtx.Args().First(),
						KeyType: interfaces.KeyType(cCtx.String("key-type")),
					})
				},
			},
			{
				Name:      "send-otp",
				Usage:     "complete onboarding with the one-time code",
				ArgsUsage: "<digits>",
				Action: func(cCtx *cli.Context) error {
					digits, err := parseDigits(cCtx.Args().First())
					if err != nil {
						return err
					}
					return run(cCtx, handlers.OpSendOTP, handlers.SendOTPData{
						EncryptedOTP: digits,
						KeyType:      interfaces.KeyType(cCtx.String("key-type")),
					})
				},
			},
			{
				Name:  "get-public-key",
				Usage: "print the signer public key",
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, handlers.OpGetPublicKey, handlers.GetPublicKeyData{
						KeyType: interfaces.KeyType(cCtx.String("key-type")),
					})
				},
			},
			{
				Name:      "sign",
				Usage:     "sign a payload",
				ArgsUsage: "<payload>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "encoding", Value: string(interfaces.EncodingUTF8), Usage: "utf8, hex, base58 or base64"},
					&cli.StringFlag{Name: "hash", Usage: "secp256k1 only: keccak256 (default), sha256 or none"},
				},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return errors.New("expected <payload>")
					}
					return run(cCtx, handlers.OpSign, handlers.SignData{
						KeyType:  interfaces.KeyType(cCtx.String("key-type")),
						Payload:  cCtx.Args().First(),
						Encoding: interfaces.Encoding(cCtx.String("encoding")),
						Hash:     cCtx.String("hash"),
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run[T any](cCtx *cli.Context, op string, data T) error {
	logger := flags.SetupLogger(cCtx)
	timeout := cCtx.Duration("timeout")

	ctx, cancel := context.WithTimeout(cCtx.Context, timeout+messenger.DefaultHandshakeTimeout)
	defer cancel()

	host, err := connect(ctx, cCtx.String("url"), cCtx.String("origin"), logger)
	if err != nil {
		return err
	}
	defer host.Close()

	auth := interfaces.AuthData{JWT: cCtx.String("jwt"), APIKey: cCtx.String("api-key")}
	raw, err := host.Call(ctx, messenger.RequestEvent(op), handlers.Request[T]{
		Version:  handlers.Version,
		AuthData: &auth,
		Data:     data,
	}, messenger.CallOptions{Timeout: timeout, RetryInterval: 500 * time.Millisecond})
	if err != nil {
		return err
	}

	var resp handlers.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if resp.Status == handlers.StatusError {
		return cli.Exit(fmt.Sprintf("%s: %s", resp.Code, resp.Error), 2)
	}
	return nil
}

// connect dials the frame endpoint and answers the signer's handshake.
func connect(ctx context.Context, url, origin string, logger *slog.Logger) (*messenger.Channel, error) {
	header := http.Header{}
	header.Set("Origin", origin)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("could not connect to %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("could not connect to %s: %w", url, err)
	}

	host := messenger.NewChannel(messenger.NewWebSocketPort(conn, "", logger), messenger.Options{Origin: origin}, logger)
	if err := host.Accept(ctx); err != nil {
		host.Close()
		return nil, err
	}
	logger.Debug("Connected to signer", "url", url)
	return host, nil
}

func parseDigits(code string) ([]int, error) {
	if code == "" {
		return nil, errors.New("expected <digits>")
	}
	digits := make([]int, 0, len(code))
	for _, r := range code {
		d, err := strconv.Atoi(string(r))
		if err != nil {
			return nil, fmt.Errorf("invalid digit %q", r)
		}
		digits = append(digits, d)
	}
	return digits, nil
}
