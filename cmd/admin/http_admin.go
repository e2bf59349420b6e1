package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"catchodds.dev/internal/oddsproto"
)

func statusCmd(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/status"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

// controlCmd posts one control op, e.g. `admin control -op SET_WEATHER -weather rain`.
func controlCmd(args []string) {
	fs := flag.NewFlagSet("control", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url (loopback only)")
	op := fs.String("op", "", "SET_TIME|SET_WEATHER|MOVE|ADVANCE_DAYS|EQUIP|RESET_STATS|RECOMPUTE")
	timeOfDay := fs.Int("time", 0, "time of day (SET_TIME)")
	weather := fs.String("weather", "", "weather (SET_WEATHER)")
	location := fs.String("location", "", "location (MOVE)")
	tileX := fs.Int("x", -1, "tile x (MOVE, optional)")
	tileY := fs.Int("y", -1, "tile y (MOVE, optional)")
	days := fs.Int("days", 0, "days (ADVANCE_DAYS)")
	rod := fs.String("rod", "", "rod item id (EQUIP)")
	bait := fs.String("bait", "", "bait item id (EQUIP)")
	_ = fs.Parse(args)

	msg, err := buildControl(*op, *timeOfDay, *weather, *location, *tileX, *tileY, *days, *rod, *bait)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	body, _ := json.Marshal(msg)
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/control"
	req, _ := http.NewRequest(http.MethodPost, u, bytes.NewReader(body))
	req.Header.Set("content-type", "application/json")
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func buildControl(op string, timeOfDay int, weather, location string, x, y, days int, rod, bait string) (oddsproto.ControlMsg, error) {
	msg := oddsproto.ControlMsg{
		Type:            "CONTROL",
		ProtocolVersion: oddsproto.Version,
		Op:              strings.ToUpper(strings.TrimSpace(op)),
	}
	switch msg.Op {
	case "":
		return msg, fmt.Errorf("missing -op")
	case oddsproto.OpSetTime:
		msg.TimeOfDay = timeOfDay
	case oddsproto.OpSetWeather:
		msg.Weather = weather
	case oddsproto.OpMove:
		msg.Location = location
		if x >= 0 && y >= 0 {
			msg.Tile = &oddsproto.Tile{X: x, Y: y}
		}
	case oddsproto.OpAdvanceDays:
		msg.Days = days
	case oddsproto.OpEquip:
		msg.Rod = rod
		msg.Bait = bait
	}
	return msg, nil
}
