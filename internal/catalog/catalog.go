// Package catalog содержит встроенные справочники: тарифы, промокоды и сборки продукта.
package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

// UnlimitedDownloads задаёт квоту скачиваний для старших тарифов.
const UnlimitedDownloads = 999

var plans = []model.Plan{
	{
		ID:    model.PlanPersonal,
		Name:  "Personal",
		Price: 49,
		Features: []string{
			"Single project use",
			"6 months of updates",
			"Community support",
			"Full source code",
		},
		UpdateMonths: 6,
		MaxDownloads: 5,
		SupportLevel: "Community",
		KeyPrefix:    "SHIP-PERS",
	},
	{
		ID:    model.PlanProfessional,
		Name:  "Professional",
		Price: 149,
		Features: []string{
			"Unlimited projects",
			"1 year of updates",
			"Priority email support",
			"Full source code",
			"Private GitHub access",
		},
		UpdateMonths: 12,
		MaxDownloads: UnlimitedDownloads,
		GitHubAccess: true,
		SupportLevel: "Priority Email",
		KeyPrefix:    "SHIP-PROF",
	},
	{
		ID:    model.PlanEnterprise,
		Name:  "Enterprise",
		Price: 499,
		Features: []string{
			"Unlimited projects",
			"Lifetime updates",
			"Premium support",
			"Full source code",
			"Private GitHub access",
			"Custom branding options",
		},
		UpdateMonths: 0,
		MaxDownloads: UnlimitedDownloads,
		GitHubAccess: true,
		SupportLevel: "Premium",
		KeyPrefix:    "SHIP-ENTR",
	},
}

var discounts = map[string]model.DiscountCode{
	"LAUNCH25":  {Code: "LAUNCH25", Kind: model.DiscountPercentage, Value: 25, Valid: true},
	"HOLIDAY10": {Code: "HOLIDAY10", Kind: model.DiscountFlat, Value: 10, Valid: true},
	"STUDENT50": {Code: "STUDENT50", Kind: model.DiscountPercentage, Value: 50, Valid: true},
	"BETA100":   {Code: "BETA100", Kind: model.DiscountFlat, Value: 100, Valid: false},
}

var releases = []model.Release{
	{
		Version:    "1.2.0",
		ReleasedAt: time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC),
		Latest:     true,
		Size:       "12.4 MB",
		Changelog: []string{
			"Added support for multiple authentication providers",
			"Improved responsive dashboard layout",
			"Enhanced API security with rate limiting",
			"Fixed issue with dark mode toggle persistence",
			"Updated dependencies to latest versions",
		},
	},
	{
		Version:    "1.1.0",
		ReleasedAt: time.Date(2023, time.November, 15, 0, 0, 0, 0, time.UTC),
		Size:       "11.8 MB",
		Changelog: []string{
			"Added internationalization (i18n) support",
			"Improved form validation with better error messages",
			"Optimized build process for faster deployment",
			"Added more UI components to the component library",
		},
	},
	{
		Version:    "1.0.0",
		ReleasedAt: time.Date(2023, time.September, 1, 0, 0, 0, 0, time.UTC),
		Size:       "10.2 MB",
		Changelog: []string{
			"Initial release of ShipFast Boilerplate",
			"Next.js 14 App Router",
			"MongoDB integration with Mongoose",
			"Authentication with NextAuth.js",
			"TailwindCSS for styling",
		},
	},
}

// Plans возвращает копию каталога тарифов в порядке возрастания цены.
func Plans() []model.Plan {
	res := make([]model.Plan, len(plans))
	for i, p := range plans {
		res[i] = clonePlan(p)
	}
	return res
}

// Plan возвращает тариф по идентификатору.
func Plan(id model.PlanID) (model.Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return clonePlan(p), true
		}
	}
	return model.Plan{}, false
}

// Discount ищет промокод без учёта регистра и окружающих пробелов.
func Discount(code string) (model.DiscountCode, bool) {
	d, ok := discounts[strings.ToUpper(strings.TrimSpace(code))]
	return d, ok
}

// Releases возвращает сборки от новой к старой.
func Releases() []model.Release {
	res := make([]model.Release, len(releases))
	for i, r := range releases {
		res[i] = cloneRelease(r)
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].ReleasedAt.After(res[j].ReleasedAt)
	})
	return res
}

// Release возвращает сборку по версии; пустая версия означает последнюю.
func Release(version string) (model.Release, bool) {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	for _, r := range releases {
		if (version == "" && r.Latest) || r.Version == version {
			return cloneRelease(r), true
		}
	}
	return model.Release{}, false
}

// Справочники общие для всех запросов, поэтому наружу уходят копии срезов.
func clonePlan(p model.Plan) model.Plan {
	p.Features = append([]string(nil), p.Features...)
	return p
}

func cloneRelease(r model.Release) model.Release {
	r.Changelog = append([]string(nil), r.Changelog...)
	return r
}

// ArtifactName возвращает имя архива сборки для тарифа.
func ArtifactName(plan model.PlanID, version string) string {
	return "shipfast-boilerplate-" + string(plan) + "-v" + version
}
