package logging

import "time"

func String(key, value string) Field        { return Field{Key: key, Value: value} }
func Int(key string, value int) Field       { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field     { return Field{Key: key, Value: value} }
func Any(key string, value any) Field       { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Latency(d time.Duration) Field { return Duration("latency", d) }

// Component names the subsystem emitting the line (election, transport, ...).
func Component(name string) Field { return String("component", name) }

func TabID(id string) Field { return String("tab_id", id) }

func SessionID(id string) Field { return String("session_id", id) }

// Seq is the server-issued event sequence number.
func Seq(seq uint64) Field { return Uint64("seq", seq) }

// LastSeq is the reducer's fencing token at the time of the log line.
func LastSeq(seq uint64) Field { return Uint64("last_seq", seq) }

func EventType(t string) Field { return String("event_type", t) }

func Phase(p string) Field { return String("phase", p) }

func Kind(k string) Field { return String("kind", k) }
