package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/glasswing-io/tray-agent/internal/backend"
	"github.com/glasswing-io/tray-agent/internal/data"
	"github.com/glasswing-io/tray-agent/internal/tray"
)

// Manual exercise for the tray session: puts an icon with two menu entries
// in the tray and prints every event until Exit is clicked.
func main() {
	backendFlag := flag.String("backend", "", "tray driver to exercise (default: platform pick)")
	flag.Parse()

	b, err := backend.New(backend.Kind(*backendFlag), "")
	if err != nil {
		log.Fatalf("backend: %v", err)
	}

	session, err := tray.New("TestApp", "com.example.testapp", b)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	defer session.Close()

	icon, format := data.TrayIcon()
	session.WithMenuItem("Open", "open").
		WithMenuItem("Exit", "exit").
		WithIcon(icon, format)
	if err := session.Err(); err != nil {
		log.Fatalf("configure: %v", err)
	}

	if err := session.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}
	fmt.Println("Tray is up. Click the icon or pick a menu item; Exit quits.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println("Interrupted.")
			return
		case <-ticker.C:
			ev, err := session.PollEvent()
			if err != nil {
				fmt.Printf("poll error: %v\n", err)
				continue
			}
			switch ev.Kind {
			case tray.EventNone:
			case tray.EventTrayClicked:
				fmt.Println("Tray icon clicked")
			case tray.EventTrayDoubleClicked:
				fmt.Println("Tray icon double-clicked")
			case tray.EventMenuItemClicked:
				fmt.Printf("Menu item clicked: %s\n", ev.MenuID)
				if ev.MenuID == "exit" {
					fmt.Println("Exit requested. Bye.")
					return
				}
			}
		}
	}
}
