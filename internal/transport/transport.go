// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"

	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/mhistat/internal/config"
)

// Connection is a byte stream to an indoor unit bridge
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// PasswordEnv holds the WebSocket password when set
const PasswordEnv = "MHISTAT_PASSWORD"

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// OpenSerial opens portName at baudRate, 8N1
func OpenSerial(portName string, baudRate int) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return &SerialConnection{port: port}, nil
}

// ListPorts returns the serial ports present on this host
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// Pipe returns two connected in-memory endpoints
func Pipe() (Connection, Connection) {
	a, b := net.Pipe()
	return a, b
}

// GetPassword reads the password from MHISTAT_PASSWORD or prompts on the terminal
func GetPassword() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// not a terminal
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// Open dials the WebSocket bridge when a URL is configured, otherwise the
// serial port. The returned description names the endpoint for logs.
func Open(serialCfg config.SerialConfig, wsCfg config.WebSocketConfig) (Connection, string, error) {
	if wsCfg.URL != "" {
		password := ""
		if wsCfg.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocket(wsCfg.URL, wsCfg.Username, password, wsCfg.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", wsCfg.URL), nil
	}

	if serialCfg.Port != "" {
		conn, err := OpenSerial(serialCfg.Port, serialCfg.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", serialCfg.Port, serialCfg.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}
