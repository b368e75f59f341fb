package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Inspect and mutate a running engine's target registry",
}

var targetAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a target",
	RunE:  runTargetAdd,
}

var targetRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Deregister a target",
	RunE:  runTargetRemove,
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every target this worker has indexed",
	RunE:  runTargetList,
}

var targetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Get or force a target's health verdict",
	RunE:  runTargetStatus,
}

func init() {
	for _, c := range []*cobra.Command{targetAddCmd, targetRemoveCmd, targetListCmd, targetStatusCmd} {
		c.Flags().String("addr", "127.0.0.1:9191", "engine admin address")
	}
	targetAddCmd.Flags().String("ip", "", "target IP (required)")
	targetAddCmd.Flags().Int("port", 0, "target port (required)")
	targetAddCmd.Flags().String("hostname", "", "target hostname")
	targetAddCmd.Flags().String("hostheader", "", "Host header override")
	targetAddCmd.Flags().Bool("healthy", true, "initial health")
	_ = targetAddCmd.MarkFlagRequired("ip")
	_ = targetAddCmd.MarkFlagRequired("port")

	targetRemoveCmd.Flags().String("ip", "", "target IP (required)")
	targetRemoveCmd.Flags().Int("port", 0, "target port (required)")
	targetRemoveCmd.Flags().String("hostname", "", "target hostname")
	_ = targetRemoveCmd.MarkFlagRequired("ip")
	_ = targetRemoveCmd.MarkFlagRequired("port")

	targetStatusCmd.Flags().String("ip", "", "target IP (required)")
	targetStatusCmd.Flags().Int("port", 0, "target port (required)")
	targetStatusCmd.Flags().String("hostname", "", "target hostname")
	targetStatusCmd.Flags().String("set", "", "force the verdict instead of reading it: healthy|unhealthy")
	_ = targetStatusCmd.MarkFlagRequired("ip")
	_ = targetStatusCmd.MarkFlagRequired("port")

	targetCmd.AddCommand(targetAddCmd, targetRemoveCmd, targetListCmd, targetStatusCmd)
}

type targetPayload struct {
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	Hostname   string `json:"hostname"`
	HostHeader string `json:"hostheader"`
	Healthy    bool   `json:"healthy"`
}

func runTargetAdd(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	ip, _ := cmd.Flags().GetString("ip")
	port, _ := cmd.Flags().GetInt("port")
	hostname, _ := cmd.Flags().GetString("hostname")
	hostheader, _ := cmd.Flags().GetString("hostheader")
	healthy, _ := cmd.Flags().GetBool("healthy")

	body, _ := json.Marshal(targetPayload{IP: ip, Port: port, Hostname: hostname, HostHeader: hostheader, Healthy: healthy})
	resp, err := http.Post(fmt.Sprintf("http://%s/targets", addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("add target: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return decodeAPIError(resp)
	}
	fmt.Printf("✓ added %s:%d\n", ip, port)
	return nil
}

func runTargetRemove(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	ip, _ := cmd.Flags().GetString("ip")
	port, _ := cmd.Flags().GetInt("port")
	hostname, _ := cmd.Flags().GetString("hostname")

	u := fmt.Sprintf("http://%s/targets?%s", addr, targetQueryString(ip, port, hostname))
	req, err := http.NewRequest(http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("remove target: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}
	fmt.Printf("✓ removed %s:%d\n", ip, port)
	return nil
}

func runTargetList(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	resp, err := http.Get(fmt.Sprintf("http://%s/targets", addr))
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	var out struct {
		Targets []struct {
			IP       string `json:"IP"`
			Port     int    `json:"Port"`
			Hostname string `json:"Hostname"`
			Health   string `json:"Health"`
			Verdict  bool   `json:"Verdict"`
		} `json:"targets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	for _, t := range out.Targets {
		fmt.Printf("%-15s %-6d %-20s %-16s verdict=%v\n", t.IP, t.Port, t.Hostname, t.Health, t.Verdict)
	}
	return nil
}

func runTargetStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	ip, _ := cmd.Flags().GetString("ip")
	port, _ := cmd.Flags().GetInt("port")
	hostname, _ := cmd.Flags().GetString("hostname")
	set, _ := cmd.Flags().GetString("set")

	if set == "" {
		u := fmt.Sprintf("http://%s/targets/status?%s", addr, targetQueryString(ip, port, hostname))
		resp, err := http.Get(u)
		if err != nil {
			return fmt.Errorf("get status: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return decodeAPIError(resp)
		}
		var out map[string]bool
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Printf("%s:%d healthy=%v\n", ip, port, out["healthy"])
		return nil
	}

	healthy := set == "healthy"
	if set != "healthy" && set != "unhealthy" {
		return fmt.Errorf("--set must be healthy or unhealthy, got %q", set)
	}
	body, _ := json.Marshal(targetPayload{IP: ip, Port: port, Hostname: hostname, Healthy: healthy})
	resp, err := http.Post(fmt.Sprintf("http://%s/targets/status", addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	fmt.Printf("✓ %s:%d forced %s\n", ip, port, set)
	return nil
}

func targetQueryString(ip string, port int, hostname string) string {
	v := url.Values{}
	v.Set("ip", ip)
	v.Set("port", strconv.Itoa(port))
	if hostname != "" {
		v.Set("hostname", hostname)
	}
	return v.Encode()
}

func decodeAPIError(resp *http.Response) error {
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Error == "" {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return fmt.Errorf("%s: %s", resp.Status, out.Error)
}
