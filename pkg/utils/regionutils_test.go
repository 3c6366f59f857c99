package utils

import "testing"

func TestIsValidRegion(t *testing.T) {
	tests := []struct {
		region string
		want   bool
	}{
		{"us-east-1", true},
		{"ap-southeast-4", true},
		{"us-gov-west-1", true},
		{"cn-north-1", true},
		{"", false},
		{"Seoul", false},
		{"us-east", false},
	}

	for _, tt := range tests {
		if got := IsValidRegion(tt.region); got != tt.want {
			t.Errorf("IsValidRegion(%q) = %v, want %v", tt.region, got, tt.want)
		}
	}
}

func TestGetRegionDescriptiveName(t *testing.T) {
	if got := GetRegionDescriptiveName("ap-northeast-2"); got != "Asia Pacific (Seoul)" {
		t.Errorf("unexpected name %q", got)
	}
	if got := GetRegionDescriptiveName("mx-central-1"); got != "mx-central-1" {
		t.Errorf("unknown regions should fall back to the code, got %q", got)
	}
}
