package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"quicksend/internal/notify"
	"quicksend/pkg/qsclient"

	"github.com/spf13/cobra"
)

var profilePath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadClient() (*Profile, *qsclient.Client, *qsclient.Identity, error) {
	p, err := readProfile(profilePath)
	if err != nil {
		return nil, nil, nil, err
	}
	c, id, err := p.Client()
	if err != nil {
		return nil, nil, nil, err
	}
	return p, c, id, nil
}

var rootCmd = &cobra.Command{
	Use:           "qsctl",
	Short:         "Command-line client for the quicksend relay",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and register this machine as its first device",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		display, _ := cmd.Flags().GetString("display")
		device, _ := cmd.Flags().GetString("device")

		ctx := cmd.Context()
		c := qsclient.New(server)
		userID, err := c.CreateUser(ctx, username, display, password)
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		p, err := enroll(ctx, c, username, userID, password, device)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s (%s)\n", username, userID)
		fmt.Printf("Device %s (%s), profile at %s\n", p.DeviceName, p.DeviceID, profilePath)
		return nil
	},
}

// enroll generates keys for a new device, registers it and writes the profile.
func enroll(ctx context.Context, c *qsclient.Client, username, userID, password, device string) (*Profile, error) {
	id, err := qsclient.GenerateIdentity()
	if err != nil {
		return nil, err
	}
	deviceID, err := c.AddDevice(ctx, username, password, qsclient.AddDevice{
		Name:                device,
		SignaturePublicKey:  id.SigningPublicKey(),
		EncryptionPublicKey: id.EncryptionPublicKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("adding device: %w", err)
	}
	p := newProfile(c.BaseURL(), username, userID, deviceID, device, id)
	if err := writeProfile(profilePath, p); err != nil {
		return nil, fmt.Errorf("writing profile: %w", err)
	}
	return p, nil
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change the account password",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := readProfile(profilePath)
		if err != nil {
			return err
		}
		current, _ := cmd.Flags().GetString("current")
		next, _ := cmd.Flags().GetString("new")
		if err := qsclient.New(p.Server).ChangePassword(cmd.Context(), p.Username, current, next); err != nil {
			return err
		}
		fmt.Println("Password changed")
		return nil
	},
}

// device command
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage devices",
}

var deviceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register this machine as another device of an existing account",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		device, _ := cmd.Flags().GetString("device")

		ctx := cmd.Context()
		c := qsclient.New(server)
		p, err := enroll(ctx, c, username, "", password, device)
		if err != nil {
			return err
		}
		signed, _, err := p.Client()
		if err != nil {
			return err
		}
		if u, err := signed.LookupUser(ctx, username); err == nil {
			p.UserID = u.ID
			_ = writeProfile(profilePath, p)
		}
		fmt.Printf("Device %s (%s), profile at %s\n", p.DeviceName, p.DeviceID, profilePath)
		return nil
	},
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the account's devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, c, _, err := loadClient()
		if err != nil {
			return err
		}
		devices, err := c.ListDevices(cmd.Context())
		if err != nil {
			return err
		}
		for _, d := range devices {
			marker := " "
			if d.ID == p.DeviceID {
				marker = "*"
			}
			last := "never"
			if d.LastActivity != nil {
				last = d.LastActivity.Local().Format(time.DateTime)
			}
			fmt.Printf("%s %s  %-20s last active %s\n", marker, d.ID, d.Name, last)
		}
		return nil
	},
}

var deviceRemoveCmd = &cobra.Command{
	Use:   "remove <device-id>",
	Short: "Remove a device and drop its pending messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, _, err := loadClient()
		if err != nil {
			return err
		}
		if err := c.RemoveDevice(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <username>",
	Short: "Resolve a username to a user id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, _, err := loadClient()
		if err != nil {
			return err
		}
		u, err := c.LookupUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s  %s\n", u.ID, u.Username, u.Display)
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <username> <text>",
	Short: "Encrypt and send a text message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, _, err := loadClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		u, err := c.LookupUser(ctx, args[0])
		if err != nil {
			return fmt.Errorf("looking up %s: %w", args[0], err)
		}
		text := strings.Join(args[1:], " ")
		id, err := c.SendSealed(ctx, u.ID, []byte(text), map[string]string{"type": "text"})
		if err != nil {
			return err
		}
		fmt.Printf("Sent %s\n", id)
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Fetch and decrypt pending messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		clearAfter, _ := cmd.Flags().GetBool("clear")

		_, c, id, err := loadClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		records, err := c.Poll(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No messages.")
		}
		for _, rec := range records {
			direction := "<-"
			if !rec.Incoming {
				direction = "->"
			}
			text, err := id.Open(rec)
			if err != nil {
				fmt.Printf("%s %s %s  [cannot decrypt: %v]\n", rec.SentAt.Local().Format(time.DateTime), direction, rec.Counterpart, err)
				continue
			}
			fmt.Printf("%s %s %s  %s\n", rec.SentAt.Local().Format(time.DateTime), direction, rec.Counterpart, text)
		}
		if clearAfter && len(records) > 0 {
			return c.Clear(ctx)
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every pending message for this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, _, err := loadClient()
		if err != nil {
			return err
		}
		return c.Clear(cmd.Context())
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print notifications as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, _, err := loadClient()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		err = c.Listen(ctx, func(ev qsclient.Event) {
			if ev.Name != notify.EventNewMessage {
				fmt.Printf("%s %s\n", ev.Name, ev.Data)
				return
			}
			var data notify.NewMessageData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				fmt.Printf("%s %s\n", ev.Name, ev.Data)
				return
			}
			fmt.Printf("new message %s from %s\n", data.MessageID, data.FromUser)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", defaultProfilePath(), "path to the device profile")

	for _, c := range []*cobra.Command{registerCmd, deviceAddCmd} {
		c.Flags().String("server", "http://localhost:8080", "relay base URL")
		c.Flags().String("username", "", "account username")
		c.Flags().String("password", "", "account password")
		c.Flags().String("device", "", "name for this device")
		_ = c.MarkFlagRequired("username")
		_ = c.MarkFlagRequired("password")
		_ = c.MarkFlagRequired("device")
	}
	registerCmd.Flags().String("display", "", "display name")

	passwordCmd.Flags().String("current", "", "current password")
	passwordCmd.Flags().String("new", "", "new password")
	_ = passwordCmd.MarkFlagRequired("current")
	_ = passwordCmd.MarkFlagRequired("new")

	pollCmd.Flags().Bool("clear", false, "clear messages after printing them")

	deviceCmd.AddCommand(deviceAddCmd, deviceListCmd, deviceRemoveCmd)
	rootCmd.AddCommand(registerCmd, passwordCmd, deviceCmd, lookupCmd, sendCmd, pollCmd, clearCmd, listenCmd)
}
