package join

import (
	"errors"
	"testing"

	"github.com/keshon/driveby/internal/apperr"
)

var channels = []VoiceChannel{
	{ID: "c1", Name: "lobby", Bitrate: 64000},
	{ID: "c2", Name: "games", Bitrate: 96000, Members: []string{"u1", "u2"}},
	{ID: "c3", Name: "music", Bitrate: 128000, Members: []string{"u3", "u4"}},
	{ID: "c4", Name: "afk", Bitrate: 8000, Members: []string{"u5"}},
}

func TestSummoner(t *testing.T) {
	got, err := Summoner(channels, "u4")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "c3" {
		t.Fatalf("channel = %s, want c3", got.ID)
	}

	_, err = Summoner(channels, "nobody")
	if !errors.Is(err, ErrSummonerNotFound) {
		t.Fatalf("err = %v, want ErrSummonerNotFound", err)
	}
	if apperr.KindOf(err) != apperr.KindJoin {
		t.Fatalf("kind = %v, want join", apperr.KindOf(err))
	}
}

func TestMostCrowded(t *testing.T) {
	tests := []struct {
		name     string
		channels []VoiceChannel
		want     string
		wantErr  error
	}{
		{name: "first of tied channels wins", channels: channels, want: "c2"},
		{name: "strict maximum", channels: []VoiceChannel{channels[3], channels[0], {ID: "big", Members: []string{"a", "b", "c"}}}, want: "big"},
		{name: "all empty", channels: []VoiceChannel{channels[0], {ID: "x"}}, wantErr: ErrNoOccupiedChannel},
		{name: "no channels", wantErr: ErrNoOccupiedChannel},
		{name: "bot alone does not count", channels: []VoiceChannel{{ID: "mine", Members: []string{"bot"}}, channels[3]}, want: "c4"},
		{name: "bot is not a listener", channels: []VoiceChannel{{ID: "mine", Members: []string{"bot", "u1"}}, {ID: "theirs", Members: []string{"u2", "u3"}}}, want: "theirs"},
		{name: "only the bot", channels: []VoiceChannel{{ID: "mine", Members: []string{"bot"}}}, wantErr: ErrNoOccupiedChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MostCrowded(tt.channels, "bot")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != tt.want {
				t.Fatalf("channel = %s, want %s", got.ID, tt.want)
			}
		})
	}
}

func TestPick(t *testing.T) {
	got, err := Pick(StrategySummoner, channels, "u5", "bot")
	if err != nil || got.ID != "c4" {
		t.Fatalf("summoner pick = %s, %v", got.ID, err)
	}
	got, err = Pick(StrategyMostCrowded, channels, "u5", "bot")
	if err != nil || got.ID != "c2" {
		t.Fatalf("most crowded pick = %s, %v", got.ID, err)
	}
}
