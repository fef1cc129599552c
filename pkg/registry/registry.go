// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadRegistry reads a template registry from a JSON file.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse template registry: %w", err)
	}
	return &reg, nil
}

// Resolve returns the variants for the closest matching triplet. The cascade
// mirrors campaign specificity: exact triplet, persona default, family-wide
// selector, family default, then the global default. The boolean is false
// only when the registry has no global default either.
func (r *TemplateRegistry) Resolve(family, persona, selector string) ([]string, bool) {
	keys := [][3]string{
		{family, persona, selector},
		{family, persona, DefaultSelector},
		{family, AnyPersona, selector},
		{family, AnyPersona, DefaultSelector},
		{AnyFamily, AnyPersona, DefaultSelector},
	}
	for _, k := range keys {
		if variants := r.lookup(k[0], k[1], k[2]); len(variants) > 0 {
			return variants, true
		}
	}
	return nil, false
}

func (r *TemplateRegistry) lookup(family, persona, selector string) []string {
	for i := range r.Templates {
		t := &r.Templates[i]
		if t.Family == family && t.Persona == persona && strings.EqualFold(t.Selector, selector) {
			return t.Variants
		}
	}
	return nil
}

// Defaults returns the built-in registry, adapted from the historical
// campaign template table. Variants are pure placeholder templates so every
// number in a rendered message traces back to the composed context.
func Defaults() *TemplateRegistry {
	return &TemplateRegistry{
		Version:     "2.1.0",
		LastUpdated: "2026-06-30",
		Templates: []Template{
			{
				ID:       "equip-nouveaute-apple",
				Family:   "OPPORTUNITE_Achat_Equipement",
				Persona:  "OPPORTUNITE_AchatNouveaute",
				Selector: "APPLE",
				Variants: []string{
					"NOUVEAU ! Réservez l'{model} {capacity} dès aujourd'hui chez Maroc Telecom et profitez d'une offre de lancement exclusive. Réservez-le ici : {link}",
					"Fan d'Apple ? Le nouvel {model} est arrivé chez Maroc Telecom. En tant que client fidèle, soyez le premier à en profiter. Rendez-vous sur {link}",
					"EXCLUSIVITE Maroc Telecom ! Le nouvel {model} {capacity} est disponible. Commandez-le dès maintenant en Agence ou sur notre e-boutique : {link}",
					"Découvrez la puissance de l'{model} avec le réseau Maroc Telecom. Disponible à partir de {price}. Plus d'infos sur {link}",
					"Vous exigez le meilleur. Le nouvel {model} est chez Maroc Telecom. Commandez le vôtre dès aujourd'hui : {link}",
				},
				Tags: []string{"equipment", "launch"},
			},
			{
				ID:       "equip-nouveaute-samsung",
				Family:   "OPPORTUNITE_Achat_Equipement",
				Persona:  "OPPORTUNITE_AchatNouveaute",
				Selector: "SAMSUNG",
				Variants: []string{
					"NOUVEAU ! Réservez le {model} chez Maroc Telecom et profitez du doublement de la capacité de stockage OFFERT ! Cliquez ici : {link}",
					"La nouvelle série Galaxy {model} est disponible chez Maroc Telecom ! Précommandez le vôtre dès maintenant sur {link}",
					"Passez au niveau supérieur avec le {model} {capacity}. Profitez de son écran immersif sur le réseau de Maroc Telecom. Dès {price} sur {link}",
					"EXCLUSIVITE IAM : le nouveau {model} {capacity} est à {price}. Commandez-le sur notre e-boutique avec livraison gratuite : {link}",
					"Offre de lancement Maroc Telecom sur le nouveau {model} ! Rendez-vous sur {link}",
				},
				Tags: []string{"equipment", "launch"},
			},
			{
				ID:       "equip-default",
				Family:   "OPPORTUNITE_Achat_Equipement",
				Persona:  AnyPersona,
				Selector: DefaultSelector,
				Variants: []string{
					"Votre prochain smartphone vous attend chez Maroc Telecom : {model} {capacity} à {price}. Commandez-le ici : {link}",
					"Passez à la vitesse supérieure avec le {model} chez Maroc Telecom, disponible à {price}. Plus d'infos sur {link}",
					"Bon plan Maroc Telecom : le {model} {capacity} est à {price} jusqu'au {deadline}. Rendez-vous sur {link}",
				},
				Tags: []string{"equipment"},
			},
			{
				ID:       "internet-pass-data",
				Family:   "USAGE_Internet",
				Persona:  "PROFIL_Internet",
				Selector: "*3",
				Variants: []string{
					"Surfez sans limite avec le Pass {offer_name} de Maroc Telecom : {volume} pour {price}, valable {validity}. Composez {cta}.",
					"Votre Pass Internet préféré fait le plein : {volume} à {price} jusqu'au {deadline}. Composez {cta} pour en profiter.",
					"Besoin de plus de data ? Le Pass {cta} de Maroc Telecom vous offre {volume} pour seulement {price}. Composez {cta}.",
					"Maroc Telecom vous gâte : {volume} d'internet pour {price}, valable {validity}. Activez vite en composant {cta}.",
					"Profitez de l'offre {offer_name} : {volume} pour {price}. Détails sur {link}",
				},
				Tags: []string{"data"},
			},
			{
				ID:       "internet-social",
				Family:   "USAGE_Internet",
				Persona:  "PROFIL_ReseauxSociaux",
				Selector: DefaultSelector,
				Variants: []string{
					"Restez connecté à vos réseaux préférés ! Le Pass {offer_name} de Maroc Telecom vous offre {volume} pour {price}. Composez {cta}.",
					"TikTok, Instagram, WhatsApp sans compter : {volume} à {price} avec Maroc Telecom, valable {validity}. Composez {cta}.",
					"Partagez plus avec le Pass {cta} : {volume} pour {price} jusqu'au {deadline}. Composez {cta}.",
				},
				Tags: []string{"data", "social"},
			},
			{
				ID:       "sms-pass",
				Family:   "USAGE_SMS",
				Persona:  "PROFIL_Sms",
				Selector: "*1",
				Variants: []string{
					"Nouveau ! Profitez de l'offre Pass SMS {cta} de Maroc Telecom : {sms_count} SMS vers tous les opérateurs pour seulement {price}. Composez {cta}.",
					"Exclusif Maroc Telecom ! Rechargez {price} avec le Pass {cta} et envoyez {sms_count} SMS pendant {validity}. Composez {cta}.",
					"Besoin d'envoyer plus de messages ? Le Pass {offer_name} de Maroc Telecom vous offre {sms_count} SMS pour {price}. Composez {cta}.",
				},
				Tags: []string{"sms"},
			},
			{
				ID:       "voix-national",
				Family:   "USAGE_Voix",
				Persona:  "PROFIL_VoixNational",
				Selector: "*22",
				Variants: []string{
					"Vos appels vers tous les opérateurs nationaux à prix réduit ! Avec le Pass {cta}, profitez de {minutes} pour {price}. Composez {cta}.",
					"Parlez plus longtemps. Le Pass National {cta} de Maroc Telecom vous offre {minutes} d'appels. Composez {cta}.",
					"Ne vous souciez plus des minutes. Le Pass {offer_name} vous offre {minutes} vers tous les réseaux pour {price}. Composez {cta}.",
				},
				Tags: []string{"voice"},
			},
			{
				ID:       "voix-international",
				Family:   "USAGE_Voix",
				Persona:  "PROFIL_CommunicantInternational",
				Selector: "*4",
				Variants: []string{
					"Gardez le contact avec le monde entier. Avec le Pass International {cta}, appelez {dest} à des tarifs imbattables. Composez {cta}.",
					"Vos appels vers {dest} à prix réduit avec Maroc Telecom : {minutes} pour {price}. Composez {cta}.",
					"Ne perdez plus le contact avec vos proches à l'étranger. Le Pass {cta} de Maroc Telecom est la solution la plus économique. Composez {cta}.",
				},
				Tags: []string{"voice", "international"},
			},
			{
				ID:       "roaming-default",
				Family:   "USAGE_Roaming",
				Persona:  AnyPersona,
				Selector: DefaultSelector,
				Variants: []string{
					"Voyagez l'esprit tranquille ! Le Pass Roaming {offer_name} de Maroc Telecom vous couvre en {dest} : {volume} pour {price}. Composez {cta}.",
					"Avant de partir, activez votre Pass {cta} : {volume} valable {validity} en {dest} pour {price}. Composez {cta}.",
				},
				Tags: []string{"roaming"},
			},
			{
				ID:       "global-default",
				Family:   AnyFamily,
				Persona:  AnyPersona,
				Selector: DefaultSelector,
				Variants: []string{
					"Offre spéciale Maroc Telecom ! Profitez de {offer_name} à {price}, valable jusqu'au {deadline}. Composez {cta}.",
					"Maroc Telecom vous réserve {offer_name} pour {price}. Offre valable jusqu'au {deadline}. Composez {cta}.",
					"Bon plan IAM : {offer_name} à {price}. Plus de détails sur {link}",
				},
				Tags: []string{"generic"},
			},
		},
	}
}
