// Command transctrlctl is a CLI client for the transctrl controller daemon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/transctrl/pkg/rpcclient"
	"github.com/cuemby/transctrl/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "transctrlctl",
	Short: "CLI client for the transctrl controller",
}

func init() {
	rootCmd.PersistentFlags().String("socket", "/var/run/transctrl/transctrl.sock", "Path to the controller's Unix socket")
	rootCmd.AddCommand(applyCmd, statusCmd, getCmd)

	applyCmd.Flags().StringP("file", "f", "", "YAML file describing the desired fleet (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

func dial(cmd *cobra.Command) (*rpcclient.Client, error) {
	socketPath, _ := cmd.Flags().GetString("socket")
	return rpcclient.New(socketPath)
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a desired fleet state from a YAML file",
	RunE:  runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var ds types.DesiredState
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return fmt.Errorf("parse YAML: %w", err)
	}

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), rpcclient.DefaultTimeout)
	defer cancel()

	result, err := c.Reconcile(ctx, &ds)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	fmt.Printf("created=%d destroyed=%d recreated=%d unchanged=%d\n",
		result.CreatedCount, result.DestroyedCount, result.RecreatedCount, result.UnchangedCount)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List every managed instance and its status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), rpcclient.DefaultTimeout)
	defer cancel()

	state, err := c.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	for _, inst := range state.Instances {
		printInstance(inst)
	}
	return nil
}

var getCmd = &cobra.Command{
	Use:   "get <instance-id>",
	Short: "Show the status of a single instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), rpcclient.DefaultTimeout)
	defer cancel()

	inst, err := c.GetInstance(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get instance: %w", err)
	}

	printInstance(inst)
	return nil
}

func printInstance(inst *types.InstanceStatus) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(struct {
		ID        string    `json:"id"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"created_at"`
		WebPort   int       `json:"web_port"`
		DataPort  int       `json:"data_port"`
	}{
		ID:        inst.ID,
		Status:    string(inst.Status),
		CreatedAt: inst.CreatedAt,
		WebPort:   inst.ActualWebPort,
		DataPort:  inst.ActualDataPort,
	})
}
