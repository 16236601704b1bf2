// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"math"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

var allSetters = []func(*Frame, *rand.Rand) bool{
	func(f *Frame, r *rand.Rand) bool { return EncodePower(f, Power(r.Intn(3))) },
	func(f *Frame, r *rand.Rand) bool { return EncodeMode(f, Mode(r.Intn(10))) },
	func(f *Frame, r *rand.Rand) bool { return EncodeSetpoint(f, 5+r.Float64()*30) },
	func(f *Frame, r *rand.Rand) bool { return EncodeExternalTemperature(f, -20+r.Float64()*75) },
	func(f *Frame, r *rand.Rand) bool { return EncodeFan(f, Fan(r.Intn(8))) },
	func(f *Frame, r *rand.Rand) bool { return EncodeVaneVert(f, VaneVert(r.Intn(14))) },
	func(f *Frame, r *rand.Rand) bool { return EncodeVaneHoriz(f, VaneHoriz(r.Intn(9))) },
}

func TestFuzzDecodeRandomFrames(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		f := randomFrame(rng)
		s := DecodeStatus(f)

		if !s.Power.Valid() || !s.Mode.Valid() || !s.Fan.Valid() || !s.VaneHoriz.Valid() || !s.VaneVert.Valid() {
			t.Fatalf("round %d: decoded unknown enum from % X: %+v", i, f.Bytes(), s)
		}
		if s.Setpoint < 0 || s.Setpoint > 31.5 {
			t.Fatalf("round %d: setpoint %v outside decodable range", i, s.Setpoint)
		}
		if s.RoomTemperature < MinExternalTemp || s.RoomTemperature > 16.5 {
			t.Fatalf("round %d: room temperature %v outside decodable range", i, s.RoomTemperature)
		}
		if s.Valid != (f.Verify() == nil) {
			t.Fatalf("round %d: Valid=%v disagrees with Verify()", i, s.Valid)
		}
		_ = ValidateFrame(f, ValidateOptions{CheckReserved: true})
	}
}

func TestFuzzSettersPreserveHeaderAndReserved(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		f := randomFrame(rng)
		orig := f.Bytes()

		for n := rng.Intn(10); n >= 0; n-- {
			allSetters[rng.Intn(len(allSetters))](f, rng)
		}

		got := f.Bytes()
		for j := 0; j < HeaderSize; j++ {
			if got[j] != orig[j] {
				t.Fatalf("round %d: header byte %d changed", i, j)
			}
		}
		for j := HeaderSize + ReservedStart; j < FrameSize; j++ {
			if got[j] != orig[j] {
				t.Fatalf("round %d: raw[%d] changed: 0x%02X -> 0x%02X", i, j, orig[j], got[j])
			}
		}
	}
}

func TestFuzzSealVerify(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		f := randomFrame(rng)
		f.Seal()
		if err := f.Verify(); err != nil {
			t.Fatalf("round %d: Verify() after Seal() = %v", i, err)
		}

		idx := rng.Intn(HeaderSize + DataSize)
		bit := rng.Intn(8)
		raw := f.Bytes()
		raw[idx] ^= 1 << bit
		g, _ := FrameFromBytes(raw)
		if g.Verify() == nil {
			t.Fatalf("round %d: single bit flip at raw[%d] bit %d not detected", i, idx, bit)
		}
	}
}

func TestFuzzSetpointRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		s := MinSetpoint + rng.Float64()*(MaxSetpoint-MinSetpoint)
		f := randomFrame(rng)
		if !EncodeSetpoint(f, s) {
			t.Fatalf("round %d: EncodeSetpoint(%v) = false", i, s)
		}
		if got, want := DecodeSetpoint(f), math.Round(s*2)/2; got != want {
			t.Fatalf("round %d: DecodeSetpoint(EncodeSetpoint(%v)) = %v, want %v", i, s, got, want)
		}
	}
}
