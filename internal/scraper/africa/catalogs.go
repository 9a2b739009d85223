package africa

import (
	"fmt"

	"AfricaScraper/internal/pipeline"
	"AfricaScraper/internal/scraper"
)

// OpenAfrica lists the open.africa CKAN catalogue. The site is server rendered,
// so it is fetched without a browser.
func OpenAfrica() scraper.Source {
	return &pageSite{
		info: scraper.Info{
			Name:     "openafrica",
			Title:    "openAFRICA dataset catalogue",
			Kind:     scraper.KindStatic,
			MaxPages: 372,
			NewSchema: schemaOf("openafrica",
				text("data_name", true),
				link("data_link", true),
				text("data_source", false),
				link("data_source_link", false),
				text("data_description", false),
				text("dataset_date_sourced", false),
				link("data_file", false),
			),
			DedupeKey: "data_link",
		},
		origin: "https://open.africa/dataset/?q=&sort=score+desc%%2C+metadata_modified+desc&page=%d",
		table: pipeline.FieldTable{
			Items: "#primary-datasetId > div > ul > li",
			Rules: rules(
				"data_name", "div > div:nth-of-type(1) > h5 > a", "",
				"data_link", "div > div:nth-of-type(1) > h5 > a", "href",
				"data_source", "div > div:nth-of-type(1) > h5 > div:nth-of-type(2) > a", "",
				"data_source_link", "div > div:nth-of-type(1) > h5 > div:nth-of-type(2) > a", "href",
				"data_description", "div > div:nth-of-type(2) > div:nth-of-type(1)", "",
				"dataset_date_sourced", "div > div:nth-of-type(1) > h5 > div:nth-of-type(1)", "",
				"data_file", "div > div:nth-of-type(2) > div:nth-of-type(2) > ul > li > a", "href",
			),
		},
	}
}

// NBS reads the Nigerian Bureau of Statistics NADA survey catalogue.
func NBS() scraper.Source {
	return &pageSite{
		info: scraper.Info{
			Name:     "nbs",
			Title:    "Nigerian Bureau of Statistics catalogue",
			Kind:     scraper.KindBrowser,
			MaxPages: 1,
			NewSchema: schemaOf("nbs",
				text("data_name", true),
				link("data_link", true),
				text("data_source", false),
				date("created_at"),
				date("last_updated"),
			),
		},
		origin: "https://nigerianstat.gov.ng/nada/index.php/catalog#_r=&collection=&country=&dtype=&from=1999&page=1&ps=100&sk=&sort_by=titl&sort_order=&to=2023&topic=&view=s&vk=",
		ready:  `//*[@id="surveys"]`,
		table: pipeline.FieldTable{
			First: 3,
			Last:  71,
			Rules: under(`//*[@id="surveys"]/div[%d]`, rules(
				"data_name", "h2", "",
				"data_link", "h2/a", "href",
				"data_source", "div[3]/div", "",
				"created_at", "div[4]/span[1]", "",
				"last_updated", "div[4]/span[2]", "",
			)),
		},
	}
}

// WorldBank reads the databank database list, one URL per page.
func WorldBank() scraper.Source {
	base := `//*[@id="DatabaseList"]/ul/li[%d]/div/div`
	return &pageSite{
		info: scraper.Info{
			Name:     "worldbank",
			Title:    "World Bank DataBank databases",
			Kind:     scraper.KindBrowser,
			MaxPages: 9,
			NewSchema: schemaOf("worldbank",
				text("database_name", true),
				link("data_link", true),
				text("data_description", false),
				date("last_updated"),
			),
			DedupeKey: "data_link",
		},
		origin: "https://databank.worldbank.org/databases/page/%d",
		ready:  `//*[@id="DatabaseList"]`,
		table: pipeline.FieldTable{
			First: 1,
			Last:  9,
			Rules: rules(
				"database_name", base+"/h4", "",
				"data_link", base+"/h4/a", "href",
				"data_description", `//*[@id="MainContent_grdDatabases_divDescription_%d"]`, "",
				"last_updated", base+"/div[3]/span/em", "",
			),
		},
	}
}

// Kaggle searches Kaggle datasets for Africa. Update times are relative ("2 days ago"),
// so they are kept as text.
func Kaggle() scraper.Source {
	return &pageSite{
		info: scraper.Info{
			Name:     "kaggle",
			Title:    "Kaggle datasets about Africa",
			Kind:     scraper.KindBrowser,
			MaxPages: 44,
			NewSchema: schemaOf("kaggle",
				text("data_name", true),
				link("data_link", true),
				text("last_updated", false),
			),
			DedupeKey: "data_link",
		},
		origin: "https://www.kaggle.com/datasets?search=africa&page=%d",
		ready:  `//*[@id="site-content"]//ul[1]/li`,
		table: pipeline.FieldTable{
			First: 1,
			Last:  20,
			Rules: under(`//*[@id="site-content"]/div[2]/div[5]/div/div/div/ul[1]/li[%d]/div/a`, rules(
				"data_name", "div/div[2]/div", "",
				"data_link", ".", "href",
				"last_updated", "div/div[2]/span[1]/span", "",
			)),
		},
	}
}

// UNInfo pages through the uninfo.org documents table. The Africa region filter has to
// be chosen by hand, so the run waits for confirmation before reading.
func UNInfo() scraper.Source {
	table := `//*[@id="app"]/div[1]/div/div/div[5]/div/div/table`
	return &pageSite{
		info: scraper.Info{
			Name:          "uninfo",
			Title:         "UN INFO country documents",
			Kind:          scraper.KindBrowser,
			CountryFields: []string{"Country"},
			ConfirmStart:  true,
			NewSchema: schemaOf("uninfo",
				text("Country", true),
				text("Data_Name", true),
				text("Data_Description", false),
				text("Data_Link", false),
				link("link", false),
			),
		},
		origin: "https://uninfo.org/documents",
		ready:  table,
		next: func(int) string {
			return `//*[@id="app"]/div[1]/div/div/div[5]/div/div/div/div/div[3]/button[2]`
		},
		table: pipeline.FieldTable{
			Items: table + "/tbody/tr[count(td) >= 5]",
			Rules: rules(
				"Country", "./td[1]", "",
				"Data_Name", "./td[2]", "",
				"Data_Description", "./td[3]", "",
				"Data_Link", "./td[5]", "",
				"link", "./td[5]//a", "href",
			),
		},
	}
}

// UNWomen lists the UN Women country profile pages.
func UNWomen() scraper.Source {
	return &pageSite{
		info: scraper.Info{
			Name:          "unwomen",
			Title:         "UN Women country profiles",
			Kind:          scraper.KindBrowser,
			CountryFields: []string{"Country Name"},
			MaxPages:      1,
			NewSchema: schemaOf("unwomen",
				text("Country Name", true),
				link("Country Link", true),
			),
		},
		origin: "https://data.unwomen.org/countries",
		ready:  `//*[@id="block-unwomen-content"]`,
		table: pipeline.FieldTable{
			First: 1,
			Last:  60,
			Rules: under(`//*[@id="block-unwomen-content"]/div[2]/div/div[1]/div/div[%d]/a`, rules(
				"Country Name", ".", "",
				"Country Link", ".", "href",
			)),
		},
	}
}

// PopulationDataPortal reads the UNFPA population data portal widget list. The data
// filters are applied by hand before the run is confirmed.
func PopulationDataPortal() scraper.Source {
	item := `//*[@id="layout_221_block_2"]/div/div/div/div/div[1]/div/div/div/div/div/div/div/div[1]/div/div/div[2]/div/div[%d]/li/div/div/div/div/div`
	cell := "div/div/div/div/div/div/div"
	return &pageSite{
		info: scraper.Info{
			Name:         "pnfa",
			Title:        "UNFPA population data portal",
			Kind:         scraper.KindBrowser,
			ConfirmStart: true,
			NewSchema: schemaOf("pnfa",
				text("data_name", true),
				link("data_link", true),
				text("source", false),
				text("domain", false),
			),
		},
		origin: "https://pdp.unfpa.org/?data_id=dataSource_8-3%3A6%2B7%2B8%2CdataSource_8-2%3A7%2B6%2B1%2B4%2B5%2B2%2B3%2B8%2B32%2B31%2B26%2B28%2CdataSource_8-0%3A386&page=Data",
		ready:  `//*[@id="layout_221_block_2"]`,
		next: func(int) string {
			return `//*[@id="layout_221_block_2"]//button[contains(@aria-label, "Next")]`
		},
		table: pipeline.FieldTable{
			First: 1,
			Last:  20,
			Rules: under(item, rules(
				"data_name", "div[1]/"+cell+"/p/span", "",
				"data_link", "div[1]/"+cell+"/p/a", "href",
				"source", "div[3]/"+cell+"/h5/span[2]", "",
				"domain", "div[4]/"+cell+"/p/span", "",
			)),
		},
	}
}

// UNData searches data.un.org for Africa. Pages 2 to 10 are reached through the
// numbered links; later pages only through "Next".
func UNData() scraper.Source {
	return &pageSite{
		info: scraper.Info{
			Name:  "undata",
			Title: "UNdata search results for Africa",
			Kind:  scraper.KindBrowser,
			NewSchema: schemaOf("undata",
				text("data_name", true),
				link("data_name_link", true),
				text("data_source", false),
				link("data_source_link", false),
				text("data_site", false),
				link("data_site_link", false),
			),
			DedupeKey: "data_name_link",
		},
		origin: "https://data.un.org/Search.aspx?q=africa&t=Data",
		ready:  `//*[@id="ctl00_main_pnlResults"]/div[2]/div[4]`,
		next:   UNDataNext,
		table: pipeline.FieldTable{
			Items: `//*[@id="ctl00_main_pnlResults"]/div[2]/div[4]/div`,
			Rules: rules(
				"data_name", ".//h2/a", "",
				"data_name_link", ".//h2/a", "href",
				"data_source", "./div[1]/a", "",
				"data_source_link", "./div[1]/a", "href",
				"data_site", "./div[1]/span/a", "",
				"data_site_link", "./div[1]/span/a", "href",
			),
		},
	}
}

// UNDataNext returns the control that leaves page n of the UNdata results.
func UNDataNext(n int) string {
	if n < 10 {
		return fmt.Sprintf(`//*[@id="ctl00_main_results_rptNav_ctl%02d_linkNav"]`, n)
	}
	return `//*[@id="ctl00_main_results_linkNext"]`
}
