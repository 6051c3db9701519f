package main

import (
	"bytes"
)

// Command は走行指令である
type Command byte

const (
	CmdForward  Command = 'F'
	CmdBackward Command = 'B'
	CmdLeft     Command = 'L'
	CmdRight    Command = 'R'
	CmdStop     Command = 'S'
)

// String はワイヤ上の1文字表現を返す
func (c Command) String() string {
	return string(rune(c))
}

// Valid は定義済みの5種類のいずれかであれば true
func (c Command) Valid() bool {
	switch c {
	case CmdForward, CmdBackward, CmdLeft, CmdRight, CmdStop:
		return true
	}
	return false
}

// ParseCommand は受信したペイロードを Command に変換する。
// 前後の空白を除いて大文字化し、ちょうど1文字の有効なトークンだけを受け付ける。
func ParseCommand(payload []byte) (Command, bool) {
	p := bytes.ToUpper(bytes.TrimSpace(payload))
	if len(p) != 1 {
		return 0, false
	}
	cmd := Command(p[0])
	if !cmd.Valid() {
		return 0, false
	}
	return cmd, true
}
