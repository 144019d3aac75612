package util

import (
	"encoding/json"
	"fmt"
)

// VcapServices is a parsed VCAP_SERVICES document: service type to
// bound service instances.
type VcapServices map[string][]VcapService

// VcapService is one bound service instance
type VcapService struct {
	Name        string          `json:"name"`
	Credentials VcapCredentials `json:"credentials"`
}

// VcapCredentials is the credentials map of a bound service
type VcapCredentials map[string]interface{}

// ParseVcapServices parses a raw VCAP_SERVICES JSON document
func ParseVcapServices(data []byte) (*VcapServices, error) {
	services := VcapServices{}
	err := json.Unmarshal(data, &services)
	return &services, err
}

// ServiceByName finds a bound service by instance name, wherever it is
// nested in the document
func (s VcapServices) ServiceByName(name string) *VcapService {
	for _, instances := range s {
		for _, service := range instances {
			if service.Name == name {
				return &service
			}
		}
	}
	return nil
}

// String recovers the credential at the given key, assuming it is a string
func (c VcapCredentials) String(key string) (string, error) {
	val, ok := c[key]
	if !ok {
		return "", fmt.Errorf("Credential key does not exist: %s", key)
	}
	valStr, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("Could not convert value to string: key=%s, value=%v", key, val)
	}
	return valStr, nil
}
