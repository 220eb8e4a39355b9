// Package collections defines the typed collections the jedi agents store in
// the vault, with their fixed secret-field classifications. The
// classification is part of the stored data layout and must not change once
// records exist.
package collections

import (
	"fmt"

	"github.com/gabrielantonyxaviour/jedi-vault/registry"
	"github.com/gabrielantonyxaviour/jedi-vault/vault"
)

// Collection names as they appear in the cluster configuration.
const (
	NameLeads             = "leads"
	NameAgentLogs         = "agent_logs"
	NameSocialCredentials = "social_credentials"
	NameGrantMilestones   = "grant_milestones"
)

// Lead is a sales lead captured by the outreach agent. Personal data is
// secret-shared; pipeline state stays filterable plaintext.
type Lead struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Company        string `json:"company"`
	ReferralSource string `json:"referral_source"`
	Status         string `json:"status"`
}

// AgentLog is one action record written by an agent. The reasoning text is
// secret-shared, the routing metadata is not.
type AgentLog struct {
	Agent     string `json:"agent"`
	Action    string `json:"action"`
	Reasoning string `json:"reasoning"`
	Timestamp string `json:"timestamp"`
}

// SocialCredential stores an access token for a social platform account.
type SocialCredential struct {
	Platform    string `json:"platform"`
	Handle      string `json:"handle"`
	AccessToken string `json:"access_token"`
}

// GrantMilestone tracks a grant deliverable, with the payout wallet shared.
type GrantMilestone struct {
	Grant        string `json:"grant"`
	Milestone    string `json:"milestone"`
	PayoutWallet string `json:"payout_wallet"`
	Status       string `json:"status"`
}

var secretFields = map[string][]string{
	NameLeads:             {"name", "email", "referral_source"},
	NameAgentLogs:         {"reasoning"},
	NameSocialCredentials: {"access_token"},
	NameGrantMilestones:   {"payout_wallet"},
}

// SecretFields returns the secret-field classification for a built-in
// collection name.
func SecretFields(name string) ([]string, error) {
	fields, ok := secretFields[name]
	if !ok {
		return nil, fmt.Errorf("no built-in collection named %q", name)
	}
	return append([]string(nil), fields...), nil
}

func open[T any](cluster *vault.Cluster, reg *registry.NodeRegistry, name string) (*vault.Collection[T], error) {
	schema, err := reg.SchemaFor(name)
	if err != nil {
		return nil, err
	}
	fields, err := SecretFields(name)
	if err != nil {
		return nil, err
	}
	return vault.NewCollection[T](cluster, vault.Schema{ID: schema, SecretFields: fields})
}

// OpenLeads opens the leads collection on the given cluster.
func OpenLeads(cluster *vault.Cluster, reg *registry.NodeRegistry) (*vault.Collection[Lead], error) {
	return open[Lead](cluster, reg, NameLeads)
}

// OpenAgentLogs opens the agent log collection on the given cluster.
func OpenAgentLogs(cluster *vault.Cluster, reg *registry.NodeRegistry) (*vault.Collection[AgentLog], error) {
	return open[AgentLog](cluster, reg, NameAgentLogs)
}

// OpenSocialCredentials opens the social credential collection on the given
// cluster.
func OpenSocialCredentials(cluster *vault.Cluster, reg *registry.NodeRegistry) (*vault.Collection[SocialCredential], error) {
	return open[SocialCredential](cluster, reg, NameSocialCredentials)
}

// OpenGrantMilestones opens the grant milestone collection on the given
// cluster.
func OpenGrantMilestones(cluster *vault.Cluster, reg *registry.NodeRegistry) (*vault.Collection[GrantMilestone], error) {
	return open[GrantMilestone](cluster, reg, NameGrantMilestones)
}
