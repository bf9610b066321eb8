package config

import "testing"

func TestCheckNonOverlapping(t *testing.T) {
	cases := []struct {
		name    string
		libs    []LibraryConfig
		wantErr bool
	}{
		{
			name: "disjoint",
			libs: []LibraryConfig{
				{Name: "music", RootPath: "/mnt/music"},
				{Name: "podcasts", RootPath: "/mnt/podcasts"},
			},
		},
		{
			name: "nested",
			libs: []LibraryConfig{
				{Name: "music", RootPath: "/mnt/music"},
				{Name: "jazz", RootPath: "/mnt/music/jazz"},
			},
			wantErr: true,
		},
		{
			name: "identical",
			libs: []LibraryConfig{
				{Name: "a", RootPath: "/mnt/music"},
				{Name: "b", RootPath: "/mnt/music"},
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkNonOverlapping(tc.libs)
			if (err != nil) != tc.wantErr {
				t.Fatalf("checkNonOverlapping() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateRejectsBadJPEGQuality(t *testing.T) {
	cfg := Config{
		Scan: ScanConfig{
			UpdatePeriod:        UpdateNever,
			SupportedExtensions: []string{".flac"},
		},
		Artwork: ArtworkConfig{
			MaxCacheSize: 1024,
			JPEGQuality:  101,
		},
	}
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error for out-of-range JPEG quality")
	}
}

func TestValidateRejectsUnknownUpdatePeriod(t *testing.T) {
	cfg := Config{
		Scan: ScanConfig{
			UpdatePeriod:        "Fortnightly",
			SupportedExtensions: []string{".flac"},
		},
		Artwork: ArtworkConfig{MaxCacheSize: 1024, JPEGQuality: 75},
	}
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error for unknown update period")
	}
}
