package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Plan is one purchasable entry of the plan catalog.
type Plan struct {
	Type    string  `mapstructure:"type" json:"type"`
	Name    string  `mapstructure:"name" json:"name"`
	Price   float64 `mapstructure:"price" json:"price"`
	Letters int     `mapstructure:"letters" json:"letters"`
}

type PlanCatalog struct {
	Plans []Plan `mapstructure:"plans" json:"plans"`
}

// Lookup returns the plan registered under planType.
func (c PlanCatalog) Lookup(planType string) (Plan, bool) {
	planType = strings.TrimSpace(planType)
	for _, plan := range c.Plans {
		if plan.Type == planType {
			return plan, true
		}
	}
	return Plan{}, false
}

func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		Plans: []Plan{
			{Type: "one_time", Name: "Single Letter", Price: 299, Letters: 1},
			{Type: "standard_4_month", Name: "Monthly Plan", Price: 299, Letters: 4},
			{Type: "premium_8_month", Name: "Yearly Plan", Price: 599, Letters: 8},
		},
	}
}

type PlanCatalogHolder struct {
	current atomic.Value // holds PlanCatalog
}

// NewStaticPlanCatalogHolder wraps a fixed catalog without touching the filesystem.
func NewStaticPlanCatalogHolder(catalog PlanCatalog) *PlanCatalogHolder {
	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)
	return holder
}

func NewPlanCatalogHolder() (*PlanCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lexdraft/config")
	v.AddConfigPath("/etc/lexdraft")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEXDRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		return NewStaticPlanCatalogHolder(DefaultPlanCatalog()), nil
	}

	var catalog PlanCatalog
	if err := v.UnmarshalKey("pricing", &catalog); err != nil {
		return nil, err
	}
	if err := validatePlanCatalog(catalog); err != nil {
		return nil, err
	}

	holder := NewStaticPlanCatalogHolder(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanCatalog
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[plan-catalog] reload failed: %v", err)
			return
		}
		if err := validatePlanCatalog(updated); err != nil {
			log.Printf("[plan-catalog] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-catalog] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PlanCatalogHolder) Get() PlanCatalog {
	return h.current.Load().(PlanCatalog)
}

func validatePlanCatalog(catalog PlanCatalog) error {
	if len(catalog.Plans) == 0 {
		return errors.New("pricing.plans cannot be empty")
	}
	seen := make(map[string]struct{}, len(catalog.Plans))
	for _, plan := range catalog.Plans {
		if strings.TrimSpace(plan.Type) == "" {
			return errors.New("pricing.plans.type is required")
		}
		if _, ok := seen[plan.Type]; ok {
			return fmt.Errorf("pricing.plans: duplicate plan %q", plan.Type)
		}
		seen[plan.Type] = struct{}{}
		if plan.Price <= 0 {
			return fmt.Errorf("pricing.plans.%s: price must be positive", plan.Type)
		}
		if plan.Letters <= 0 {
			return fmt.Errorf("pricing.plans.%s: letters must be positive", plan.Type)
		}
	}
	return nil
}
