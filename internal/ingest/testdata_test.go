package ingest

const metaCSV = `Campaign name,Ad set name,Amount spent (INR),"CPM (cost per 1,000 impressions) (INR)",CTR (link click-through rate),Reporting starts,Reporting ends
Summer Sale,Adset A,"1,200.50",100,1.5%,2025-09-10,2025-09-12
Summer Sale,Adset B,300,--,0.8%,2025-09-10,2025-09-12
,,,,,,
Total,,1500.50,,,,
`

const googleCSV = `Campaign performance
"September 10, 2025 - September 29, 2025"
Campaign,Cost,Avg. CPM,CTR,Impr.
Brand,"₹1,000.00",50.00,2.50%,"20,000"
Total: Account,1000,50,2.5%,20000
`

const shopifyCSV = `Day,UTM campaign,UTM term,Online store visitors,Sessions with cart additions,Sessions that reached checkout,Average session duration,Pageviews
2025-09-10,Summer Sale,Adset A,10,2,1,100,80
"Sep 11, 2025",Summer Sale,Adset B,40,0,0,00:00:50,40
`
